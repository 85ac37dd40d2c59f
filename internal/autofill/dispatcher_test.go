package autofill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfill/jobfill/internal/browser"
	"github.com/jobfill/jobfill/internal/browser/browsertest"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
)

// liveForm is what a live snapshot of contactForm looks like.
const liveForm = `<html><head><title>Apply now</title></head><body><form>
<label for="first_name">First Name</label>
<input id="first_name" name="first_name" data-jobfill-id="jf1" data-jobfill-value="">
<label for="email">Email</label>
<input id="email" type="email" name="email" data-jobfill-id="jf2" data-jobfill-value="">
<input id="secret" name="first_name" data-jobfill-id="jf3" data-jobfill-value="" data-jobfill-hidden>
</form></body></html>`

func newDispatcher(t *testing.T, page *browsertest.Page, profile ProfileReader, opts ...DispatcherOption) (*Dispatcher, *browsertest.Driver) {
	t.Helper()
	driver := browsertest.NewDriver(page)
	opts = append([]DispatcherOption{WithTimings(config.BrowserConfig{RetryDelay: time.Millisecond})}, opts...)
	return NewDispatcher(driver, newService(t, profile), opts...), driver
}

func TestTrigger_FillsLivePage(t *testing.T) {
	page := browsertest.NewPage(pageURL, liveForm)
	d, driver := newDispatcher(t, page, ada())

	resp := d.Trigger(context.Background(), pageURL)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.FilledCount)
	assert.Equal(t, []string{pageURL}, driver.Opened)
	assert.True(t, page.Closed)

	assert.Equal(t, []dom.Write{
		{Target: "jf1", Op: dom.OpSetValue, Value: "Ada"},
		{Target: "jf2", Op: dom.OpSetValue, Value: "ada@example.com"},
	}, page.Main().Writes())
	assert.Equal(t, 1, page.Main().Cleanups)

	toasts := page.ShownToasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, browser.Toast{Message: "Autofilled 2 fields!", Kind: browser.ToastSuccess, Duration: 4 * time.Second}, toasts[0])
}

func TestTrigger_RetriesOnceAfterCommunicationFailure(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	page := browsertest.NewPage(pageURL, liveForm)
	page.Main().SnapshotFailures = 1
	d, _ := newDispatcher(t, page, ada(), WithDispatcherMetrics(metrics))

	resp := d.Trigger(context.Background(), pageURL)

	assert.True(t, resp.Success)
	assert.Equal(t, 1, page.Main().Snapshots)
	assert.Len(t, page.Main().Writes(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CommRetries))
}

func TestTrigger_RetriesWhenApplyFails(t *testing.T) {
	page := browsertest.NewPage(pageURL, liveForm)
	page.Main().ApplyFailures = 1
	d, _ := newDispatcher(t, page, ada())

	resp := d.Trigger(context.Background(), pageURL)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, page.Main().Snapshots, "the retry takes a fresh snapshot")
	assert.Len(t, page.Main().Writes(), 2)
}

func TestTrigger_SecondFailureShowsBadge(t *testing.T) {
	page := browsertest.NewPage(pageURL, liveForm)
	page.Main().SnapshotFailures = 2
	d, _ := newDispatcher(t, page, ada())

	resp := d.Trigger(context.Background(), pageURL)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, domain.MsgUnreachable)
	assert.Contains(t, resp.Message, browsertest.ErrUnreachable.Error())
	assert.Zero(t, resp.FilledCount)
	assert.Empty(t, page.Main().Writes())

	toasts := page.ShownToasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, browser.ToastFailure, toasts[0].Kind)
	assert.Equal(t, 3*time.Second, toasts[0].Duration)
}

func TestTrigger_UnsuccessfulRunShowsBadge(t *testing.T) {
	page := browsertest.NewPage(pageURL, liveForm)
	d, _ := newDispatcher(t, page, staticProfile{})

	resp := d.Trigger(context.Background(), pageURL)

	assert.Equal(t, domain.MsgNoProfile, resp.Message)
	assert.Empty(t, page.Main().Applied)
	assert.Equal(t, 1, page.Main().Cleanups)
	toasts := page.ShownToasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, browser.ToastFailure, toasts[0].Kind)
}

func TestTrigger_RecordsOneRunPerTrigger(t *testing.T) {
	tests := []struct {
		name          string
		applyFailures int
		success       float64
		unreachable   float64
		cleanups      int
	}{
		{name: "apply succeeds on retry", applyFailures: 1, success: 1, unreachable: 0, cleanups: 2},
		{name: "apply fails twice", applyFailures: 2, success: 0, unreachable: 1, cleanups: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetrics("test", prometheus.NewRegistry())
			page := browsertest.NewPage(pageURL, liveForm)
			page.Main().ApplyFailures = tt.applyFailures
			d := NewDispatcher(browsertest.NewDriver(page), newService(t, ada(), WithMetrics(metrics)),
				WithTimings(config.BrowserConfig{RetryDelay: time.Millisecond}))

			d.Trigger(context.Background(), pageURL)

			assert.Equal(t, tt.success, testutil.ToFloat64(metrics.AutofillRunsTotal.WithLabelValues(OutcomeSuccess)))
			assert.Equal(t, tt.unreachable, testutil.ToFloat64(metrics.AutofillRunsTotal.WithLabelValues(OutcomeUnreachable)))
			total := 0.0
			for _, o := range []string{OutcomeSuccess, OutcomeNoProfile, OutcomeNoFields, OutcomeDetectionError, OutcomeError, OutcomeUnreachable} {
				total += testutil.ToFloat64(metrics.AutofillRunsTotal.WithLabelValues(o))
			}
			assert.Equal(t, 1.0, total, "one outcome per trigger")
			assert.Equal(t, tt.cleanups, page.Main().Cleanups, "stamps are removed after every attempt")
		})
	}
}

func TestTrigger_OpenFailure(t *testing.T) {
	d, driver := newDispatcher(t, browsertest.NewPage(pageURL, liveForm), ada())
	driver.OpenErr = errors.New("browser crashed")

	resp := d.Trigger(context.Background(), pageURL)

	assert.Equal(t, domain.Failure(domain.MsgUnreachable+"browser crashed"), resp)
}

func TestTrigger_CancelledDuringRetryDelay(t *testing.T) {
	page := browsertest.NewPage(pageURL, liveForm)
	page.Main().SnapshotFailures = 1
	d, _ := newDispatcher(t, page, ada(), WithTimings(config.BrowserConfig{RetryDelay: time.Hour}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := d.Trigger(ctx, pageURL)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, context.DeadlineExceeded.Error())
}

func TestTrigger_SameOriginFrames(t *testing.T) {
	page := browsertest.NewPage(pageURL, `<html><body>
<input name="first_name" data-jobfill-id="jf1" data-jobfill-value=""></body></html>`)
	page.FrameList = append(page.FrameList, &browsertest.Frame{
		FrameURL: "https://jobs.example.com/embed",
		Markup:   `<html><body><input type="email" data-jobfill-id="jf1" data-jobfill-value=""></body></html>`,
	})
	d, _ := newDispatcher(t, page, ada())

	resp := d.Trigger(context.Background(), pageURL)

	assert.Equal(t, 2, resp.FilledCount)
	assert.Equal(t, []dom.Write{{Target: "jf1", Op: dom.OpSetValue, Value: "Ada"}}, page.FrameList[0].Writes())
	assert.Equal(t, []dom.Write{{Target: "jf1", Op: dom.OpSetValue, Value: "ada@example.com"}}, page.FrameList[1].Writes())
}
