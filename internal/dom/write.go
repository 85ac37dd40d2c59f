package dom

import (
	"strconv"

	"golang.org/x/net/html"
)

// WriteOp is the kind of state change a fill applied to a control.
type WriteOp string

const (
	OpSetValue   WriteOp = "value"
	OpSelect     WriteOp = "select"
	OpSetChecked WriteOp = "checked"
)

// Write is one journaled state change. Target is the live snapshot stamp of
// the control; it is empty for documents that were not snapshotted.
type Write struct {
	Target  string  `json:"id"`
	Op      WriteOp `json:"op"`
	Value   string  `json:"value,omitempty"`
	Checked bool    `json:"checked,omitempty"`
}

// Event is a synthetic DOM event dispatched on a control after a write.
type Event struct {
	Type    string
	Target  *html.Node
	Bubbles bool
}

// NotifyEvents is the sequence dispatched after every successful write so that
// reactive frameworks observing the control recompute.
var NotifyEvents = []string{"input", "change", "blur"}

// SetValue writes a text value into an input or textarea.
func (e *Element) SetValue(v string) {
	if e.Kind == KindTextarea {
		for c := e.Node.FirstChild; c != nil; {
			next := c.NextSibling
			e.Node.RemoveChild(c)
			c = next
		}
		e.Node.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	} else {
		setAttr(e.Node, "value", v)
	}
	e.reflectValue(v)
	e.journal(Write{Target: e.StampID(), Op: OpSetValue, Value: v})
}

// SelectOption makes o the selected option of a select.
func (e *Element) SelectOption(o Option) {
	for _, opt := range e.Options() {
		removeAttr(opt.Node, "selected")
	}
	setAttr(o.Node, "selected", "")
	e.reflectValue(o.Value)
	e.journal(Write{Target: e.StampID(), Op: OpSelect, Value: o.Value})
}

// SetChecked sets the checked state of a checkbox or radio. Checking a radio
// unchecks the rest of its group.
func (e *Element) SetChecked(checked bool) {
	if e.Kind == KindRadio && checked {
		for _, r := range e.RadioGroup() {
			if r.Node != e.Node {
				r.setCheckedAttr(false)
			}
		}
	}
	e.setCheckedAttr(checked)
	e.journal(Write{Target: e.StampID(), Op: OpSetChecked, Checked: checked})
}

// Dispatch records synthetic bubbling events targeted at the element.
func (e *Element) Dispatch(types ...string) {
	d := e.Root.Doc
	for _, t := range types {
		d.events = append(d.events, Event{Type: t, Target: e.Node, Bubbles: true})
	}
}

func (e *Element) setCheckedAttr(checked bool) {
	if checked {
		setAttr(e.Node, "checked", "")
	} else {
		removeAttr(e.Node, "checked")
	}
	if e.HasAttr(AttrChecked) {
		setAttr(e.Node, AttrChecked, strconv.FormatBool(checked))
	}
}

func (e *Element) reflectValue(v string) {
	if e.HasAttr(AttrValue) {
		setAttr(e.Node, AttrValue, v)
	}
}

func (e *Element) journal(w Write) {
	e.Root.Doc.writes = append(e.Root.Doc.writes, w)
}

// EventsFor returns the events dispatched on one node, in order.
func (d *Document) EventsFor(n *html.Node) []Event {
	var out []Event
	for _, ev := range d.events {
		if ev.Target == n {
			out = append(out, ev)
		}
	}
	return out
}
