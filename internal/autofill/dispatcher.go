package autofill

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/browser"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
)

// Dispatcher triggers runs against live pages. Communication failures are
// retried once with a fresh snapshot; a second failure is shown in the page
// and reported, never returned as an error.
type Dispatcher struct {
	driver  browser.Driver
	service *Service

	retryDelay   time.Duration
	toastSuccess time.Duration
	toastFailure time.Duration

	logger  *zap.Logger
	metrics *observability.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimings sets the retry delay and toast lifetimes from configuration.
func WithTimings(cfg config.BrowserConfig) DispatcherOption {
	return func(d *Dispatcher) {
		if cfg.RetryDelay > 0 {
			d.retryDelay = cfg.RetryDelay
		}
		if cfg.ToastSuccess > 0 {
			d.toastSuccess = cfg.ToastSuccess
		}
		if cfg.ToastFailure > 0 {
			d.toastFailure = cfg.ToastFailure
		}
	}
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithDispatcherMetrics records communication retries. Run outcomes are
// recorded through the service metrics.
func WithDispatcherMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher over a driver and a service.
func NewDispatcher(driver browser.Driver, service *Service, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		driver:       driver,
		service:      service,
		retryDelay:   100 * time.Millisecond,
		toastSuccess: 4 * time.Second,
		toastFailure: 3 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger opens rawURL and runs autofill on it.
func (d *Dispatcher) Trigger(ctx context.Context, rawURL string) domain.AutofillResponse {
	log := d.logger.With(zap.String("url", rawURL))

	page, err := d.driver.Open(ctx, rawURL)
	if err != nil {
		log.Error("error opening page", zap.Error(err))
		report := unreachable(err)
		d.service.record(report)
		return report.Response
	}
	defer page.Close()

	return d.TriggerPage(ctx, page)
}

// TriggerPage runs autofill on an already open page.
func (d *Dispatcher) TriggerPage(ctx context.Context, page browser.Page) domain.AutofillResponse {
	log := d.logger.With(zap.String("url", page.URL()))

	if info, err := page.Info(ctx); err == nil && LooksLikeJobApplication(info.URL, info.Title, info.Text) {
		log.Info("job application page detected")
	}

	report, err := d.attempt(ctx, page)
	if errors.Is(err, browser.ErrCommunication) {
		d.metrics.RecordCommRetry()
		log.Warn("error communicating with page, retrying", zap.Error(err))

		select {
		case <-time.After(d.retryDelay):
			report, err = d.attempt(ctx, page)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		log.Error("autofill failed after retry", zap.Error(err))
		report = unreachable(err)
	}
	d.service.record(report)

	d.notify(ctx, page, report.Response)
	return report.Response
}

// attempt snapshots the page, runs the service and replays the writes. A
// fresh snapshot re-injects the page scripts, so a retry starts clean. The
// run is not recorded; TriggerPage records the final outcome once.
func (d *Dispatcher) attempt(ctx context.Context, page browser.Page) (Report, error) {
	capture, err := browser.Snapshot(ctx, page)
	if err != nil {
		return Report{}, err
	}

	report := d.service.run(ctx, capture.Page)
	if !report.Response.Success || capture.Pending() == 0 {
		capture.Cleanup(ctx)
		return report, nil
	}

	if _, err := capture.Replay(ctx); err != nil {
		return Report{}, err
	}
	return report, nil
}

func (d *Dispatcher) notify(ctx context.Context, page browser.Page, resp domain.AutofillResponse) {
	toast := browser.Toast{
		Message:  "Autofilled " + domain.Plural(resp.FilledCount, "field") + "!",
		Kind:     browser.ToastSuccess,
		Duration: d.toastSuccess,
	}
	if !resp.Success {
		toast = browser.Toast{Message: resp.Message, Kind: browser.ToastFailure, Duration: d.toastFailure}
	}
	if err := page.Toast(ctx, toast); err != nil {
		d.logger.Debug("toast not shown", zap.Error(err))
	}
}
