package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// ControlKind is the closed set of form controls the engine knows how to fill.
type ControlKind int

const (
	KindUnknown ControlKind = iota
	KindText
	KindURL
	KindDate
	KindTextarea
	KindSelect
	KindCheckbox
	KindRadio
	KindHidden
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindText:     "text",
	KindURL:      "url",
	KindDate:     "date",
	KindTextarea: "textarea",
	KindSelect:   "select",
	KindCheckbox: "checkbox",
	KindRadio:    "radio",
	KindHidden:   "hidden",
}

func (k ControlKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Checkable reports whether the control is judged by checked state rather than value.
func (k ControlKind) Checkable() bool {
	return k == KindCheckbox || k == KindRadio
}

// classify maps an element to its control kind. ok is false for elements that
// are not fillable controls at all (buttons, file pickers, passwords).
func classify(n *html.Node) (kind ControlKind, ok bool) {
	if n.Type != html.ElementNode {
		return KindUnknown, false
	}
	switch n.Data {
	case "select":
		return KindSelect, true
	case "textarea":
		return KindTextarea, true
	case "input":
	default:
		return KindUnknown, false
	}

	switch strings.ToLower(strings.TrimSpace(attr(n, "type"))) {
	case "", "text", "email", "tel", "number", "search", "month", "week", "time", "datetime-local":
		return KindText, true
	case "url":
		return KindURL, true
	case "date":
		return KindDate, true
	case "checkbox":
		return KindCheckbox, true
	case "radio":
		return KindRadio, true
	case "hidden":
		return KindHidden, true
	case "submit", "button", "reset", "image", "file", "password":
		return KindUnknown, false
	default:
		return KindUnknown, true
	}
}
