// Package dom models the pages the autofill engine works on: parsed HTML
// documents, the roots reachable from them (main document, same-origin
// frames, shadow roots), the form controls each root owns, and the journal of
// writes and synthetic events produced while filling.
//
// Shadow roots are represented the way they serialize: a <template
// shadowrootmode> child of the host element. Live pages are snapshotted into
// this form by the browser package.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Snapshot attributes stamped onto live controls before serialization.
const (
	AttrID      = "data-jobfill-id"
	AttrValue   = "data-jobfill-value"
	AttrChecked = "data-jobfill-checked"
	AttrHidden  = "data-jobfill-hidden"
)

// Document is one parsed HTML document (a page or a frame).
type Document struct {
	url    *url.URL
	root   *html.Node
	frames map[*html.Node]*Document
	writes []Write
	events []Event
}

// Parse reads an HTML document. base is the document URL and may be empty.
func Parse(r io.Reader, base string) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	var u *url.URL
	if base != "" {
		u, err = url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing document url %q: %w", base, err)
		}
	}
	return NewDocument(gq.Nodes[0], u), nil
}

// ParseString is Parse over a string.
func ParseString(s, base string) (*Document, error) {
	return Parse(strings.NewReader(s), base)
}

// NewDocument wraps an already parsed node tree.
func NewDocument(root *html.Node, u *url.URL) *Document {
	return &Document{
		url:    u,
		root:   root,
		frames: make(map[*html.Node]*Document),
	}
}

// URL returns the document URL, or nil when unknown.
func (d *Document) URL() *url.URL { return d.url }

// Node returns the document node.
func (d *Document) Node() *html.Node { return d.root }

// Writes returns the journal of writes applied to this document.
func (d *Document) Writes() []Write { return d.writes }

// Events returns the synthetic events dispatched in this document.
func (d *Document) Events() []Event { return d.events }

// Find returns the first element owned by the document (shadow roots
// included, frames excluded) matching the predicate.
func (d *Document) Find(match func(*html.Node) bool) *html.Node {
	var found *html.Node
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(d.root)
	return found
}

// ElementByID looks up an element by id across the document and its shadow roots.
func (d *Document) ElementByID(id string) *html.Node {
	return d.Find(func(n *html.Node) bool { return attr(n, "id") == id })
}

// Render serializes the document, including any values written into it.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// HTML returns the serialized document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// StripSnapshotAttrs removes the live snapshot stamps from the tree.
func (d *Document) StripSnapshotAttrs() {
	d.Find(func(n *html.Node) bool {
		for _, k := range []string{AttrID, AttrValue, AttrChecked, AttrHidden} {
			removeAttr(n, k)
		}
		return false
	})
}

// Flatten prepares the document for rendering after a fill. Stamps are stripped
// from it and every resolved frame, and each frame that received writes is
// rendered into the srcdoc of its iframe so the values appear in HTML(). A
// srcdoc takes precedence over src, so a filled src frame is inlined in place.
// It reports whether the document or any of its frames changed.
func (d *Document) Flatten() (bool, error) {
	d.StripSnapshotAttrs()
	changed := len(d.writes) > 0
	for iframe, fd := range d.frames {
		if fd == nil {
			continue
		}
		frameChanged, err := fd.Flatten()
		if err != nil {
			return changed, err
		}
		if !frameChanged {
			continue
		}
		out, err := fd.HTML()
		if err != nil {
			return changed, fmt.Errorf("rendering frame: %w", err)
		}
		setAttr(iframe, "srcdoc", out)
		changed = true
	}
	return changed, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func textContent(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func isShadowTemplate(n *html.Node) bool {
	return isElement(n, "template") && hasAttr(n, "shadowrootmode")
}
