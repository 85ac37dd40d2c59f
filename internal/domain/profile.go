package domain

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
)

// Profile is the user's stored application data keyed by semantic field name.
// Values are scalars as decoded from JSON: string, bool, float64 or nil.
// Missing keys mean "no value" and are never an error.
type Profile map[string]any

// FieldSpec describes one field of the profile schema
type FieldSpec struct {
	Name    string
	Section string
	Default string
	// Choices is the closed categorical vocabulary; empty for free text fields
	Choices []string
}

// Categorical reports whether the field takes a value from a closed set
func (f FieldSpec) Categorical() bool {
	return len(f.Choices) > 0
}

// Allows reports whether v is one of the field's categorical values
func (f FieldSpec) Allows(v string) bool {
	for _, c := range f.Choices {
		if c == v {
			return true
		}
	}
	return false
}

// Profile sections
const (
	SectionPersonal     = "personal"
	SectionAddress      = "address"
	SectionLinks        = "links"
	SectionStatus       = "status"
	SectionDemographics = "demographics"
	SectionEducation    = "education"
	SectionWorkAuth     = "work_authorization"
	SectionOther        = "other"
)

var (
	yesNo        = []string{"yes", "no"}
	yesNoDecline = []string{"yes", "no", "decline"}
)

// ProfileSchema is the fixed, ordered vocabulary of profile fields.
var ProfileSchema = []FieldSpec{
	{Name: "firstName", Section: SectionPersonal},
	{Name: "lastName", Section: SectionPersonal},
	{Name: "fullName", Section: SectionPersonal},
	{Name: "email", Section: SectionPersonal},
	{Name: "phone", Section: SectionPersonal},

	{Name: "address", Section: SectionAddress},
	{Name: "city", Section: SectionAddress},
	{Name: "state", Section: SectionAddress},
	{Name: "zipCode", Section: SectionAddress},
	{Name: "country", Section: SectionAddress},

	{Name: "linkedin", Section: SectionLinks},
	{Name: "website", Section: SectionLinks},
	{Name: "github", Section: SectionLinks},

	{Name: "veteranStatus", Section: SectionStatus, Default: "decline", Choices: yesNoDecline},
	{Name: "disabilityStatus", Section: SectionStatus, Default: "decline", Choices: yesNoDecline},
	{Name: "previouslyWorked", Section: SectionStatus, Default: "no", Choices: yesNo},
	{Name: "willingToRelocate", Section: SectionStatus, Default: "yes", Choices: yesNo},

	{Name: "gender", Section: SectionDemographics, Default: "decline",
		Choices: []string{"male", "female", "non-binary", "decline"}},
	{Name: "race", Section: SectionDemographics, Default: "decline",
		Choices: []string{"american-indian", "asian", "black", "hispanic", "pacific-islander", "white", "two-or-more", "decline"}},
	{Name: "sexuality", Section: SectionDemographics, Default: "decline", Choices: yesNoDecline},
	{Name: "hispanic", Section: SectionDemographics, Default: "decline", Choices: yesNoDecline},

	{Name: "school", Section: SectionEducation},
	{Name: "degree", Section: SectionEducation},
	{Name: "major", Section: SectionEducation},
	{Name: "gpa", Section: SectionEducation},
	{Name: "graduationDate", Section: SectionEducation},

	{Name: "sponsorship", Section: SectionWorkAuth, Default: "no", Choices: yesNo},
	{Name: "clearance", Section: SectionWorkAuth},

	{Name: "referralSource", Section: SectionOther},
	{Name: "desiredSalary", Section: SectionOther},
	{Name: "startDate", Section: SectionOther},
	{Name: "coverLetter", Section: SectionOther},
	{Name: "additionalInfo", Section: SectionOther},
}

var schemaIndex = func() map[string]FieldSpec {
	idx := make(map[string]FieldSpec, len(ProfileSchema))
	for _, f := range ProfileSchema {
		idx[f.Name] = f
	}
	return idx
}()

// LookupField returns the schema entry for a profile field name
func LookupField(name string) (FieldSpec, bool) {
	f, ok := schemaIndex[name]
	return f, ok
}

// DefaultProfile returns the structurally-defaulted empty profile
func DefaultProfile() Profile {
	p := make(Profile, len(ProfileSchema))
	for _, f := range ProfileSchema {
		p[f.Name] = f.Default
	}
	return p
}

// Clone returns a shallow copy of the profile
func (p Profile) Clone() Profile {
	if p == nil {
		return Profile{}
	}
	return maps.Clone(p)
}

// Value returns the fillable value of a field. Absent keys, nil, empty strings
// and non-scalar values report false. Explicit false and 0 are fillable.
func (p Profile) Value(field string) (any, bool) {
	v, ok := p[field]
	if !ok || v == nil {
		return nil, false
	}
	switch tv := v.(type) {
	case string:
		if tv == "" {
			return nil, false
		}
		return tv, true
	case bool, float64, int, int64, json.Number:
		return tv, true
	default:
		return nil, false
	}
}

// IsEmpty reports whether the user never set the profile up: no field holds a
// fillable value other than its schema default.
func (p Profile) IsEmpty() bool {
	for k := range p {
		v, ok := p.Value(k)
		if !ok {
			continue
		}
		if f, known := LookupField(k); known && f.Default != "" && v == any(f.Default) {
			continue
		}
		return false
	}
	return true
}

// FormatValue renders a scalar profile value the way it is written into a page
func FormatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case bool:
		return strconv.FormatBool(tv)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case json.Number:
		return tv.String()
	default:
		return ""
	}
}

// Truthy reports the checkbox interpretation of a profile value
func Truthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case float64:
		return tv != 0
	case int:
		return tv != 0
	case int64:
		return tv != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(tv)) {
		case "", "false", "0", "no", "off":
			return false
		}
		return true
	default:
		return FormatValue(v) != ""
	}
}
