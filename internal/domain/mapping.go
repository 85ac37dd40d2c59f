package domain

import "strings"

// ControlHint is the control kind a mapping expects to match
type ControlHint string

const (
	HintNone     ControlHint = ""
	HintSelect   ControlHint = "select"
	HintTextarea ControlHint = "textarea"
	HintURL      ControlHint = "url"
	HintDate     ControlHint = "date"
	HintGeneric  ControlHint = "generic"
)

// Valid reports whether the hint is one of the known kinds
func (h ControlHint) Valid() bool {
	switch h {
	case HintNone, HintSelect, HintTextarea, HintURL, HintDate, HintGeneric:
		return true
	}
	return false
}

// FieldMapping describes how to recognize a page control that corresponds to
// one profile field and how to translate categorical values into on-page
// equivalents.
type FieldMapping struct {
	ProfileField string              `json:"profileField" yaml:"profileField"`
	Selectors    []string            `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	Keywords     []string            `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	FuzzyMatch   bool                `json:"fuzzyMatch,omitempty" yaml:"fuzzyMatch,omitempty"`
	Type         ControlHint         `json:"type,omitempty" yaml:"type,omitempty"`
	ValueMapping map[string][]string `json:"valueMapping,omitempty" yaml:"valueMapping,omitempty"`
}

// Synonyms returns the acceptable on-page equivalents for a profile value
func (m *FieldMapping) Synonyms(value string) ([]string, bool) {
	if m == nil || m.ValueMapping == nil {
		return nil, false
	}
	syn, ok := m.ValueMapping[value]
	if !ok || len(syn) == 0 {
		return nil, false
	}
	return syn, true
}

// LowerKeywords returns the keywords lower-cased, skipping blanks
func (m *FieldMapping) LowerKeywords() []string {
	out := make([]string, 0, len(m.Keywords))
	for _, k := range m.Keywords {
		if k = strings.ToLower(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
