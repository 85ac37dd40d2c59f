package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
)

const applicationForm = `<!DOCTYPE html>
<html><head><title>Apply - Software Engineer</title></head>
<body>
<form id="application">
	<label for="first_name">First Name</label>
	<input type="text" name="first_name" id="first_name">

	<label for="last_name">Last Name</label>
	<input type="text" name="last_name" id="last_name">

	<label for="email">Email Address</label>
	<input type="email" name="email" id="email">

	<label for="phone">Phone</label>
	<input type="tel" name="phone" id="phone" value="555-0100">

	<label for="linkedin">LinkedIn Profile</label>
	<input type="url" name="linkedin_profile" id="linkedin">

	<label for="country">Country</label>
	<select name="country" id="country">
		<option value="">Select a country</option>
		<option value="US">United States</option>
		<option value="CA">Canada</option>
	</select>

	<label for="veteran">Veteran Status</label>
	<select name="veteran_status" id="veteran">
		<option value="">Select...</option>
		<option value="1">I am a protected veteran</option>
		<option value="2">I am not a protected veteran</option>
		<option value="3">I don't wish to answer</option>
	</select>

	<fieldset>
		<legend>Will you require sponsorship?</legend>
		<input type="radio" name="requires_sponsorship" id="sponsor_yes" value="yes">
		<label for="sponsor_yes">Yes</label>
		<input type="radio" name="requires_sponsorship" id="sponsor_no" value="no">
		<label for="sponsor_no">No</label>
	</fieldset>

	<label for="cover">Cover Letter</label>
	<textarea name="cover_letter" id="cover"></textarea>

	<input type="hidden" name="email_token" value="abc">
	<input type="submit" value="Submit application">
</form>
</body></html>`

func adaProfile() domain.Profile {
	p := domain.DefaultProfile()
	p["firstName"] = "Ada"
	p["lastName"] = "Lovelace"
	p["email"] = "ada@example.com"
	p["phone"] = "555-0199"
	p["linkedin"] = "https://linkedin.com/in/ada"
	p["country"] = "us"
	p["coverLetter"] = "Dear team,\nI would like to apply."
	return p
}

func TestFill_ApplicationForm(t *testing.T) {
	page := parsePage(t, applicationForm)
	e := New(defaultTable(t))

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"firstName", "lastName", "email", "linkedin", "country", "veteranStatus", "sponsorship", "coverLetter",
	}, keys(res))

	filled := e.Fill(context.Background(), res, adaProfile())
	assert.Equal(t, 8, filled)

	assert.Equal(t, "Ada", controlByID(t, page, "first_name").Value())
	assert.Equal(t, "Lovelace", controlByID(t, page, "last_name").Value())
	assert.Equal(t, "555-0100", controlByID(t, page, "phone").Value(), "pre-filled value is kept")
	assert.Equal(t, "US", controlByID(t, page, "country").Value())
	assert.Equal(t, "3", controlByID(t, page, "veteran").Value())
	assert.False(t, controlByID(t, page, "sponsor_yes").Checked())
	assert.True(t, controlByID(t, page, "sponsor_no").Checked())
	assert.Equal(t, "Dear team,\nI would like to apply.", controlByID(t, page, "cover").Value())
	assert.Empty(t, eventTypes(controlByID(t, page, "sponsor_yes")))
}

func TestFill_RadioScenario(t *testing.T) {
	table := loadTable(t, `{"vet":{"profileField":"veteranStatus","selectors":["input[name='vet']"],"valueMapping":{"no":["no"]}}}`)
	page := parsePage(t, `
		<input type="radio" name="vet" id="yes" value="yes">
		<input type="radio" name="vet" id="no" value="no">`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	filled := e.Fill(context.Background(), res, domain.Profile{"veteranStatus": "no"})
	assert.Equal(t, 1, filled)

	yes, no := controlByID(t, page, "yes"), controlByID(t, page, "no")
	assert.True(t, no.Checked())
	assert.False(t, yes.Checked())
	assert.Empty(t, eventTypes(yes))
	assert.Equal(t, []string{"input", "change", "blur"}, eventTypes(no))
}

func TestFill_RadioMatchesLabel(t *testing.T) {
	table := loadTable(t, `{"rel":{"profileField":"willingToRelocate","selectors":["input[name='q7']"],"valueMapping":{"yes":["willing"]}}}`)
	page := parsePage(t, `
		<label><input type="radio" name="q7" id="opt1" value="a"> Not at this time</label>
		<label><input type="radio" name="q7" id="opt2" value="b"> Yes, willing to move</label>`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Fill(context.Background(), res, domain.Profile{"willingToRelocate": "yes"}))
	assert.True(t, controlByID(t, page, "opt2").Checked())
}

func TestFill_RadioWithoutValueMappingIsNonFill(t *testing.T) {
	table := loadTable(t, `{"vet":{"profileField":"veteranStatus","selectors":["input[name='vet']"],"valueMapping":{"yes":["yes"]}}}`)
	page := parsePage(t, `
		<input type="radio" name="vet" id="yes" value="yes">
		<input type="radio" name="vet" id="no" value="no">`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Fill(context.Background(), res, domain.Profile{"veteranStatus": "no"}))
	assert.Empty(t, page.Main().Writes())
}

func selectCandidate(t *testing.T, src, mappingDoc string) (Candidate, *dom.Page) {
	t.Helper()
	table := loadTable(t, mappingDoc)
	page := parsePage(t, src)
	el := controlByID(t, page, "s")
	return Candidate{Element: el, Rule: table.Rules()[0], Confidence: 0.9}, page
}

func TestFill_SelectScenario_NoSynonymMatch(t *testing.T) {
	c, page := selectCandidate(t,
		`<select id="s" name="vet"><option value="US">United States</option></select>`,
		`{"vet":{"profileField":"veteranStatus","valueMapping":{"decline":["prefer not"]}}}`)
	m := observability.NewMetrics("test", nil)
	e := New(nil, WithMetrics(m))

	filled := e.Fill(context.Background(), DetectionResult{Candidates: []Candidate{c}}, domain.Profile{"veteranStatus": "decline"})
	assert.Equal(t, 0, filled)
	assert.Empty(t, page.Main().Writes())
	assert.Empty(t, eventTypes(c.Element))
}

func TestFill_Select(t *testing.T) {
	const options = `<select id="s">
		<option value="">Choose</option>
		<optgroup label="Answers">
			<option value="Y">Yes</option>
			<option value="N">No</option>
			<option value="X">I prefer not to say</option>
		</optgroup>
	</select>`
	mappingDoc := `{"m":{"profileField":"sexuality","valueMapping":{"decline":["prefer not"],"no":["nope"]}}}`

	tests := []struct {
		name   string
		value  string
		filled bool
		want   string
	}{
		{"exact value case-insensitive", "y", true, "Y"},
		{"synonym in option text", "decline", true, "X"},
		{"synonym missing", "no", false, ""},
		{"no mapping entry", "yes", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := selectCandidate(t, options, mappingDoc)
			filled := New(nil).Fill(context.Background(), DetectionResult{Candidates: []Candidate{c}}, domain.Profile{"sexuality": tt.value})
			assert.Equal(t, tt.filled, filled == 1)
			assert.Equal(t, tt.want, c.Element.Value())
			if tt.filled {
				assert.Equal(t, []string{"input", "change", "blur"}, eventTypes(c.Element))
			}
		})
	}
}

func TestFill_EmptyValuesSkipped(t *testing.T) {
	table := loadTable(t, `{
		"first": {"profileField":"firstName","selectors":["#first"]},
		"last": {"profileField":"lastName","selectors":["#last"]},
		"city": {"profileField":"city","selectors":["#city"]}
	}`)
	page := parsePage(t, `<input id="first"><input id="last"><input id="city">`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())

	filled := e.Fill(context.Background(), res, domain.Profile{"firstName": "", "lastName": nil})
	assert.Equal(t, 0, filled)
	assert.Empty(t, page.Main().Writes())
	assert.Empty(t, page.Main().Events())
}

func TestFill_Checkbox(t *testing.T) {
	table := loadTable(t, `{"c":{"profileField":"clearance","selectors":["#c"]}}`)

	tests := []struct {
		name    string
		value   any
		checked bool
	}{
		{"true", true, true},
		{"explicit false is applied", false, false},
		{"zero is applied", float64(0), false},
		{"yes string", "yes", true},
		{"no string", "no", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := parsePage(t, `<input type="checkbox" id="c">`)
			e := New(table)
			res, err := e.Detect(context.Background(), page)
			require.NoError(t, err)

			filled := e.Fill(context.Background(), res, domain.Profile{"clearance": tt.value})
			assert.Equal(t, 1, filled)
			assert.Equal(t, tt.checked, controlByID(t, page, "c").Checked())
			require.Len(t, page.Main().Writes(), 1)
			assert.Equal(t, dom.OpSetChecked, page.Main().Writes()[0].Op)
		})
	}
}

func TestFill_CheckedCheckboxNotDetected(t *testing.T) {
	table := loadTable(t, `{"c":{"profileField":"clearance","selectors":["#c"]}}`)
	page := parsePage(t, `<input type="checkbox" id="c" value="on" checked>`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	e.Fill(context.Background(), res, domain.Profile{"clearance": false})
	assert.True(t, controlByID(t, page, "c").Checked(), "an answered checkbox is left alone")
	assert.Empty(t, page.Main().Writes())
}

func TestDetect_CheckboxJudgedByCheckedState(t *testing.T) {
	table := loadTable(t, `{"c":{"profileField":"clearance","selectors":["#c"]}}`)
	page := parsePage(t, `<input type="checkbox" id="c" value="on">`)

	res, err := New(table).Detect(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len(), "a non-empty value does not make a checkbox answered")
}

func TestFill_UnknownKindFallsBackToText(t *testing.T) {
	table := loadTable(t, `{"w":{"profileField":"website","selectors":["#w"]}}`)
	page := parsePage(t, `<input type="color" id="w">`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, dom.KindUnknown, res.Candidates[0].Element.Kind)

	assert.Equal(t, 1, e.Fill(context.Background(), res, domain.Profile{"website": "#ff0000"}))
	assert.Equal(t, "#ff0000", controlByID(t, page, "w").Value())
}

func TestFill_NumericValueFormatted(t *testing.T) {
	table := loadTable(t, `{"gpa":{"profileField":"gpa","selectors":["#gpa"]}}`)
	page := parsePage(t, `<input id="gpa">`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	e.Fill(context.Background(), res, domain.Profile{"gpa": 3.9})
	assert.Equal(t, "3.9", controlByID(t, page, "gpa").Value())
}

func TestFill_FailureIsolatedPerField(t *testing.T) {
	table := loadTable(t, `{"first":{"profileField":"firstName","selectors":["#first"]}}`)
	page := parsePage(t, `<input id="first">`)
	e := New(table)

	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	// An element detached from any root panics when its write is journaled.
	broken := Candidate{
		Element: &dom.Element{Node: &html.Node{Type: html.ElementNode, Data: "input"}, Kind: dom.KindText},
		Rule:    res.Candidates[0].Rule,
	}
	res.Candidates = append([]Candidate{broken}, res.Candidates...)

	filled := e.Fill(context.Background(), res, domain.Profile{"firstName": "Ada"})
	assert.Equal(t, 1, filled)
	assert.Equal(t, "Ada", controlByID(t, page, "first").Value())
}

func TestFill_Cancelled(t *testing.T) {
	page := parsePage(t, applicationForm)
	e := New(defaultTable(t))
	res, err := e.Detect(context.Background(), page)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, e.Fill(ctx, res, adaProfile()))
}
