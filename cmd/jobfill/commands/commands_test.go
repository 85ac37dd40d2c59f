package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/browser"
	"github.com/jobfill/jobfill/internal/browser/browsertest"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
)

const applyURL = "https://jobs.example.com/apply/7"

const liveForm = `<html><body><form>
<label for="first_name">First Name</label>
<input id="first_name" name="first_name" data-jobfill-id="jf1" data-jobfill-value="">
</form></body></html>`

const emailForm = `<html><body><form>
<label for="e">Email</label><input id="e" type="email" name="email">
%s
</form></body></html>`

func setupEnv(t *testing.T) string {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", config.StoreFile)
	t.Setenv("STORE_FILE_PATH", filepath.Join(dir, "profile.json"))
	t.Setenv("MAPPING_SOURCE", config.MappingEmbedded)
	t.Setenv("BROWSER_RETRY_DELAY", "1ms")
	return dir
}

type result struct {
	out    string
	errOut string
	err    error
}

func run(t *testing.T, opts *Options, stdin string, args ...string) result {
	t.Helper()
	cmd := NewRootCommand(opts)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func TestProfileCommands(t *testing.T) {
	setupEnv(t)

	r := run(t, nil, "", "profile", "show")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "No profile data found")

	r = run(t, nil, "", "profile", "set", "firstName", "Ada")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "firstName updated")

	r = run(t, nil, "", "profile", "set", "gender", "female")
	require.NoError(t, r.err)

	r = run(t, nil, "", "profile", "show")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "personal")
	assert.Contains(t, r.out, "Ada")
	assert.Contains(t, r.out, "female")
	assert.NotContains(t, r.out, "lastName", "empty fields are hidden")

	r = run(t, nil, "", "profile", "show", "--all")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "lastName")

	r = run(t, nil, "", "profile", "export")
	require.NoError(t, r.err)
	var exported map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.out), &exported))
	assert.Equal(t, "Ada", exported["firstName"])
	assert.Contains(t, r.out, "\n  \"", "exported with a 2-space indent")

	r = run(t, nil, "", "profile", "clear")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Profile cleared")

	r = run(t, nil, "", "profile", "show")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "No profile data found")
}

func TestProfileSet_Rejected(t *testing.T) {
	setupEnv(t)

	r := run(t, nil, "", "profile", "set", "favoriteColor", "blue")
	var appErr *domain.AppError
	require.ErrorAs(t, r.err, &appErr)
	assert.Equal(t, domain.ErrCodeValidation, appErr.Code)

	r = run(t, nil, "", "profile", "set", "sponsorship", "maybe")
	require.ErrorAs(t, r.err, &appErr)
	assert.Contains(t, appErr.Message, "maybe")
}

func TestProfileImport(t *testing.T) {
	dir := setupEnv(t)

	r := run(t, nil, `{"email":"ada@example.com"}`, "profile", "import", "-")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Profile imported")

	out := filepath.Join(dir, "export.json")
	r = run(t, nil, "", "profile", "export", "-o", out)
	require.NoError(t, r.err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ada@example.com")

	file := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`["not", "an", "object"]`), 0o600))
	r = run(t, nil, "", "profile", "import", file)
	var appErr *domain.AppError
	require.ErrorAs(t, r.err, &appErr)
	assert.Equal(t, domain.ErrCodeInvalidProfile, appErr.Code)

	r = run(t, nil, "", "profile", "import", filepath.Join(dir, "missing.json"))
	assert.Error(t, r.err)
}

func TestFillHTML(t *testing.T) {
	dir := setupEnv(t)
	run(t, nil, "", "profile", "set", "email", "ada@example.com")

	frame := filepath.Join(dir, "frame.html")
	require.NoError(t, os.WriteFile(frame, []byte(strings.Replace(emailForm, "%s", "", 1)), 0o600))
	page := filepath.Join(dir, "apply.html")
	require.NoError(t, os.WriteFile(page, []byte(strings.Replace(emailForm, "%s", `<iframe src="frame.html"></iframe>`, 1)), 0o600))

	out := filepath.Join(dir, "filled.html")
	r := run(t, nil, "", "fill-html", page, "-o", out)
	require.NoError(t, r.err)
	assert.Contains(t, r.errOut, "Successfully filled 2 fields!")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `value="ada@example.com"`)
	assert.NotContains(t, string(data), "data-jobfill")
}

func TestFillHTML_Stdin(t *testing.T) {
	setupEnv(t)
	run(t, nil, "", "profile", "set", "email", "ada@example.com")

	r := run(t, nil, strings.Replace(emailForm, "%s", "", 1), "fill-html", "-", "--url", applyURL)
	require.NoError(t, r.err)
	assert.Contains(t, r.out, `value="ada@example.com"`)
}

func TestFillHTML_EmptyProfile(t *testing.T) {
	setupEnv(t)

	r := run(t, nil, strings.Replace(emailForm, "%s", "", 1), "fill-html", "-")
	assert.ErrorIs(t, r.err, ErrNotFilled)
	assert.Contains(t, r.errOut, "No profile data found")
}

func TestFill(t *testing.T) {
	setupEnv(t)
	run(t, nil, "", "profile", "set", "firstName", "Ada")

	page := browsertest.NewPage(applyURL, liveForm)
	driver := browsertest.NewDriver(page)
	opts := &Options{
		NewDriver: func(config.BrowserConfig, *zap.Logger) (browser.Driver, error) { return driver, nil },
	}

	r := run(t, opts, "", "fill", applyURL)
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "✓ "+applyURL)
	assert.Contains(t, r.out, "Successfully filled 1 field!")
	assert.Len(t, page.Main().Writes(), 1)
	assert.True(t, driver.Closed)
}

func TestFill_Unreachable(t *testing.T) {
	setupEnv(t)
	run(t, nil, "", "profile", "set", "firstName", "Ada")

	page := browsertest.NewPage(applyURL, liveForm)
	opts := &Options{
		NewDriver: func(config.BrowserConfig, *zap.Logger) (browser.Driver, error) {
			return browsertest.NewDriver(page), nil
		},
	}

	r := run(t, opts, "", "fill", applyURL, "https://gone.example.com/apply")
	assert.ErrorIs(t, r.err, ErrNotFilled)
	assert.Contains(t, r.err.Error(), "1 of 2 pages")
	assert.Contains(t, r.out, "✗ https://gone.example.com/apply")
	assert.Contains(t, r.out, domain.MsgUnreachable)
}

func TestMappings(t *testing.T) {
	setupEnv(t)

	r := run(t, nil, "", "mappings")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "firstName")
	assert.Contains(t, r.out, "email")
	assert.Contains(t, r.out, "mappings (loaded)")
}

func TestMappings_FileSource(t *testing.T) {
	dir := setupEnv(t)
	doc := filepath.Join(dir, "mappings.yaml")
	require.NoError(t, os.WriteFile(doc, []byte("workEmail:\n  profileField: email\n  selectors: [\"input[type=email]\"]\n"), 0o600))
	t.Setenv("MAPPING_SOURCE", config.MappingFile)
	t.Setenv("MAPPING_PATH", doc)

	r := run(t, nil, "", "mappings")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "workEmail")
	assert.Contains(t, r.out, "1 mappings (loaded)")
}
