package dom

import (
	"fmt"
	"iter"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/jobfill/jobfill/internal/domain"
)

// MaxRootDepth bounds frame and shadow root nesting.
const MaxRootDepth = 16

// RootKind tells where a root came from.
type RootKind int

const (
	RootDocument RootKind = iota
	RootFrame
	RootShadow
)

func (k RootKind) String() string {
	switch k {
	case RootDocument:
		return "document"
	case RootFrame:
		return "frame"
	case RootShadow:
		return "shadow"
	}
	return fmt.Sprintf("RootKind(%d)", int(k))
}

// Root is a searchable subtree: a document, or a shadow root attached to a
// host element. Controls are owned by exactly one root.
type Root struct {
	Kind  RootKind
	Doc   *Document
	Node  *html.Node
	Host  *html.Node
	Depth int
}

// FrameResolver loads the document of a same-origin iframe referenced by src.
// Returning (nil, nil) means the frame has no accessible document.
type FrameResolver interface {
	ResolveFrame(src *url.URL) (*Document, error)
}

// FrameResolverFunc adapts a function to FrameResolver.
type FrameResolverFunc func(src *url.URL) (*Document, error)

func (f FrameResolverFunc) ResolveFrame(src *url.URL) (*Document, error) { return f(src) }

// Page groups the documents of one page visit. The first document is the main
// document. Additional documents are frames already captured by a live driver.
type Page struct {
	Documents []*Document

	// InlineFrames resolves <iframe> elements found in the tree (srcdoc, or
	// src through Resolver). Live snapshots disable it because their frames
	// are supplied in Documents.
	InlineFrames bool
	Resolver     FrameResolver

	// OnSkip observes frames skipped as unreachable (cross-origin, failed).
	OnSkip func(src, reason string)
}

// NewPage builds a page over a static document tree, resolving inline frames.
func NewPage(main *Document) *Page {
	return &Page{Documents: []*Document{main}, InlineFrames: true}
}

// Main returns the main document.
func (p *Page) Main() *Document {
	if len(p.Documents) == 0 {
		return nil
	}
	return p.Documents[0]
}

// Roots lazily yields every reachable root in pre-order: each document, then
// the shadow roots and frames found inside it in document order. The walk is
// bounded by MaxRootDepth and may be restarted; frame documents resolved once
// are reused, so writes survive a restart.
func (p *Page) Roots() iter.Seq[*Root] {
	return func(yield func(*Root) bool) {
		seen := make(map[*html.Node]bool)
		for i, d := range p.Documents {
			kind := RootDocument
			if i > 0 {
				kind = RootFrame
			}
			if !p.walk(&Root{Kind: kind, Doc: d, Node: d.root}, seen, yield) {
				return
			}
		}
	}
}

func (p *Page) walk(r *Root, seen map[*html.Node]bool, yield func(*Root) bool) bool {
	if r.Depth > MaxRootDepth || seen[r.Node] {
		return true
	}
	seen[r.Node] = true
	if !yield(r) {
		return false
	}

	cont := true
	r.owned(func(n *html.Node) {
		if !cont {
			return
		}
		switch {
		case isShadowTemplate(n):
			cont = p.walk(&Root{Kind: RootShadow, Doc: r.Doc, Node: n, Host: n.Parent, Depth: r.Depth + 1}, seen, yield)
		case isElement(n, "iframe") && p.InlineFrames:
			if fd := p.frameDocument(r.Doc, n); fd != nil {
				cont = p.walk(&Root{Kind: RootFrame, Doc: fd, Node: fd.root, Host: n, Depth: r.Depth + 1}, seen, yield)
			}
		}
	})
	return cont
}

// owned visits every element owned by the root in document order, including
// nested shadow templates and iframes themselves but not their contents.
func (r *Root) owned(fn func(*html.Node)) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			fn(c)
			switch {
			case isElement(c, "template"), isElement(c, "iframe"):
				// shadow roots and frames are separate roots; inert templates are skipped
			default:
				visit(c)
			}
		}
	}
	visit(r.Node)
}

// Controls returns the form controls owned by the root in document order.
func (r *Root) Controls() []*Element {
	var out []*Element
	r.owned(func(n *html.Node) {
		if kind, ok := classify(n); ok {
			out = append(out, &Element{Node: n, Root: r, Kind: kind})
		}
	})
	return out
}

// Contains reports whether n is owned by this root.
func (r *Root) Contains(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == r.Node {
			return true
		}
		if isShadowTemplate(p) {
			return false
		}
	}
	return false
}

func (p *Page) frameDocument(parent *Document, iframe *html.Node) *Document {
	if d, ok := parent.frames[iframe]; ok {
		return d
	}
	d := p.loadFrame(parent, iframe)
	parent.frames[iframe] = d
	return d
}

func (p *Page) loadFrame(parent *Document, iframe *html.Node) *Document {
	if hasAttr(iframe, "srcdoc") {
		d, err := ParseString(attr(iframe, "srcdoc"), "")
		if err != nil {
			p.skip("srcdoc", err.Error())
			return nil
		}
		d.url = parent.url
		return d
	}

	src := strings.TrimSpace(attr(iframe, "src"))
	if src == "" || strings.HasPrefix(src, "about:") {
		return nil
	}
	u, err := resolveRef(parent.url, src)
	if err != nil {
		p.skip(src, err.Error())
		return nil
	}
	if !SameOrigin(parent.url, u) {
		p.skip(src, "cross-origin")
		return nil
	}
	if p.Resolver == nil {
		return nil
	}
	d, err := p.Resolver.ResolveFrame(u)
	if err != nil {
		p.skip(src, err.Error())
		return nil
	}
	if d != nil && d.url == nil {
		d.url = u
	}
	return d
}

func (p *Page) skip(src, reason string) {
	if p.OnSkip != nil {
		p.OnSkip(src, reason)
	}
}

func resolveRef(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if base != nil {
		return base.ResolveReference(u), nil
	}
	return u, nil
}

// SameOrigin reports whether u shares the origin of base. With no base URL,
// only relative references count as same-origin. Local file documents may
// embed other local files.
func SameOrigin(base, u *url.URL) bool {
	if base != nil && strings.EqualFold(base.Scheme, "file") {
		return strings.EqualFold(u.Scheme, "file")
	}
	if base == nil || base.Host == "" {
		return !u.IsAbs()
	}
	return strings.EqualFold(base.Scheme, u.Scheme) && strings.EqualFold(base.Host, u.Host)
}

// Census counts the raw input, select and textarea elements of every root.
func (p *Page) Census() domain.Census {
	var c domain.Census
	for r := range p.Roots() {
		c.Roots++
		r.owned(func(n *html.Node) {
			switch n.Data {
			case "input":
				c.Inputs++
			case "select":
				c.Selects++
			case "textarea":
				c.Textareas++
			}
		})
	}
	return c
}
