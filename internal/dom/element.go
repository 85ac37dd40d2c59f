package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is one form control together with the root that owns it.
type Element struct {
	Node *html.Node
	Root *Root
	Kind ControlKind
}

// Attr returns an attribute value, or "" when absent.
func (e *Element) Attr(name string) string { return attr(e.Node, name) }

// HasAttr reports whether the attribute is present.
func (e *Element) HasAttr(name string) bool { return hasAttr(e.Node, name) }

// Tag returns the lower-case tag name.
func (e *Element) Tag() string { return e.Node.Data }

// InputType returns the lower-case type attribute of an input ("text" when unset).
func (e *Element) InputType() string {
	if e.Node.Data != "input" {
		return ""
	}
	t := strings.ToLower(strings.TrimSpace(e.Attr("type")))
	if t == "" {
		return "text"
	}
	return t
}

func (e *Element) ID() string   { return e.Attr("id") }
func (e *Element) Name() string { return e.Attr("name") }

// StampID returns the live snapshot stamp, if any.
func (e *Element) StampID() string { return e.Attr(AttrID) }

// Value returns the control's current value. Snapshot values reflected from a
// live page take precedence over markup defaults.
func (e *Element) Value() string {
	if e.HasAttr(AttrValue) {
		return e.Attr(AttrValue)
	}
	switch e.Kind {
	case KindTextarea:
		return textContent(e.Node)
	case KindSelect:
		opts := e.Options()
		for _, o := range opts {
			if o.Selected {
				return o.Value
			}
		}
		if len(opts) > 0 {
			return opts[0].Value
		}
		return ""
	case KindCheckbox, KindRadio:
		if !e.HasAttr("value") {
			return "on"
		}
	}
	return e.Attr("value")
}

// Checked returns the checked state of a checkbox or radio.
func (e *Element) Checked() bool {
	if e.HasAttr(AttrChecked) {
		return e.Attr(AttrChecked) == "true"
	}
	return e.HasAttr("checked")
}

// Visible approximates whether the control is rendered: neither it nor any
// ancestor (shadow hosts included) is hidden by attribute, inline style or a
// snapshot marker.
func (e *Element) Visible() bool {
	for n := e.Node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") || hasAttr(n, AttrHidden) {
			return false
		}
		style := strings.ToLower(strings.ReplaceAll(attr(n, "style"), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// Form returns the owning <form>: the element named by the form attribute, or
// the nearest ancestor form within the root.
func (e *Element) Form() *html.Node {
	if id := e.Attr("form"); id != "" {
		var found *html.Node
		e.Root.owned(func(n *html.Node) {
			if found == nil && n.Data == "form" && attr(n, "id") == id {
				found = n
			}
		})
		if found != nil {
			return found
		}
	}
	for n := e.Node.Parent; n != nil && n != e.Root.Node; n = n.Parent {
		if isElement(n, "form") {
			return n
		}
	}
	return nil
}

// Label returns the associated <label>: label[for=id] within the same root,
// else the nearest ancestor label.
func (e *Element) Label() *html.Node {
	if id := e.ID(); id != "" {
		var found *html.Node
		e.Root.owned(func(n *html.Node) {
			if found == nil && n.Data == "label" && attr(n, "for") == id {
				found = n
			}
		})
		if found != nil {
			return found
		}
	}
	for n := e.Node.Parent; n != nil && n != e.Root.Node; n = n.Parent {
		if isElement(n, "label") {
			return n
		}
	}
	return nil
}

// LabelText returns the text content of the associated label.
func (e *Element) LabelText() string {
	if l := e.Label(); l != nil {
		return textContent(l)
	}
	return ""
}

// PrecedingText returns the inline text before the element within its parent:
// text nodes plus the text of label and span siblings.
func (e *Element) PrecedingText() string {
	parent := e.Node.Parent
	if parent == nil {
		return ""
	}
	var b strings.Builder
	for c := parent.FirstChild; c != nil && c != e.Node; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case isElement(c, "label"), isElement(c, "span"):
			b.WriteString(textContent(c))
		}
	}
	return strings.TrimSpace(b.String())
}

// SearchText concatenates everything a keyword may match: name, id,
// placeholder, aria-label, label text and preceding inline text.
func (e *Element) SearchText() string {
	var parts []string
	for _, a := range []string{"name", "id", "placeholder", "aria-label"} {
		if v := e.Attr(a); v != "" {
			parts = append(parts, v)
		}
	}
	if l := e.LabelText(); l != "" {
		parts = append(parts, l)
	}
	if t := e.PrecedingText(); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// Option is one <option> of a select.
type Option struct {
	Node     *html.Node
	Value    string
	Text     string
	Selected bool
}

// Options lists the options of a select, optgroups flattened.
func (e *Element) Options() []Option {
	if e.Kind != KindSelect {
		return nil
	}
	var out []Option
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case isElement(c, "option"):
				text := textContent(c)
				var value string
				if hasAttr(c, "value") {
					value = attr(c, "value")
				} else {
					value = strings.Join(strings.Fields(text), " ")
				}
				out = append(out, Option{Node: c, Value: value, Text: text, Selected: hasAttr(c, "selected")})
			case isElement(c, "optgroup"):
				visit(c)
			}
		}
	}
	visit(e.Node)
	return out
}

// RadioGroup returns the radios sharing this radio's name and owning form
// within the same root, in document order. An unnamed radio is its own group.
func (e *Element) RadioGroup() []*Element {
	if e.Kind != KindRadio {
		return nil
	}
	name := e.Name()
	if name == "" {
		return []*Element{e}
	}
	form := e.Form()
	var group []*Element
	for _, c := range e.Root.Controls() {
		if c.Kind == KindRadio && c.Name() == name && c.Form() == form {
			if c.Node == e.Node {
				c = e
			}
			group = append(group, c)
		}
	}
	return group
}

// GroupKey identifies the radio group of an element.
type GroupKey struct {
	Root *html.Node
	Form *html.Node
	Name string
}

// GroupKey returns the (root, form, name) key used to deduplicate radios.
func (e *Element) GroupKey() GroupKey {
	if e.Name() == "" {
		return GroupKey{Root: e.Root.Node, Form: e.Node}
	}
	return GroupKey{Root: e.Root.Node, Form: e.Form(), Name: e.Name()}
}
