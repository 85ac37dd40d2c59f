// Package autofill runs the detect, fill and report cycle over a page and
// carries the glue that triggers runs against live browser tabs.
package autofill

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/engine"
	"github.com/jobfill/jobfill/internal/mapping"
	"github.com/jobfill/jobfill/internal/observability"
)

// Run outcomes, as recorded in metrics
const (
	OutcomeSuccess        = "success"
	OutcomeNoProfile      = "no_profile"
	OutcomeNoFields       = "no_fields"
	OutcomeDetectionError = "detection_error"
	OutcomeError          = "error"
	OutcomeUnreachable    = "unreachable"
)

// TableLoader supplies the mapping table for a run.
type TableLoader interface {
	Load(ctx context.Context) *mapping.Table
}

// ProfileReader supplies the profile for a run.
type ProfileReader interface {
	Get(ctx context.Context) domain.Profile
}

// Report is the full outcome of one run.
type Report struct {
	RunID     string
	Response  domain.AutofillResponse
	Detection engine.DetectionResult
	Outcome   string
	Duration  time.Duration
}

// Service runs autofill passes.
type Service struct {
	tables   TableLoader
	profiles ProfileReader
	policy   engine.Policy
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records run outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPolicy overrides the scoring policy.
func WithPolicy(p engine.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService creates a Service.
func NewService(tables TableLoader, profiles ProfileReader, opts ...Option) *Service {
	s := &Service{
		tables:   tables,
		profiles: profiles,
		policy:   engine.DefaultPolicy,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Autofill detects and fills the fields of page and reports the outcome.
// It answers exactly once and never panics.
func (s *Service) Autofill(ctx context.Context, page *dom.Page) domain.AutofillResponse {
	return s.Run(ctx, page).Response
}

// Run is Autofill with the detection details kept.
func (s *Service) Run(ctx context.Context, page *dom.Page) Report {
	report := s.run(ctx, page)
	s.record(report)
	return report
}

// record logs a finished run and counts it in metrics. Callers record each
// run exactly once.
func (s *Service) record(report Report) {
	s.metrics.RecordAutofillRun(report.Outcome, report.Detection.Len(), report.Response.FilledCount, report.Duration)
	s.logger.Info("autofill finished",
		zap.String("run_id", report.RunID),
		zap.String("outcome", report.Outcome),
		zap.Int("detected", report.Detection.Len()),
		zap.Int("filled", report.Response.FilledCount),
		zap.Duration("duration", report.Duration),
	)
}

// unreachable reports a page that could not be scripted.
func unreachable(err error) Report {
	return Report{
		RunID:    uuid.NewString(),
		Response: domain.Failure(domain.MsgUnreachable + err.Error()),
		Outcome:  OutcomeUnreachable,
	}
}

func (s *Service) run(ctx context.Context, page *dom.Page) (report Report) {
	report.RunID = uuid.NewString()
	start := time.Now()
	log := s.logger.With(zap.String("run_id", report.RunID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during autofill", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			report.Response = domain.Failure(domain.MsgRunError + fmt.Sprint(r))
			report.Outcome = OutcomeError
		}
		report.Duration = time.Since(start)
	}()

	if page != nil && page.Main() != nil && page.Main().URL() != nil {
		log.Debug("starting autofill", zap.String("url", page.Main().URL().String()))
	}

	profile := s.profiles.Get(ctx)
	if profile.IsEmpty() {
		report.Response = domain.Failure(domain.MsgNoProfile)
		report.Outcome = OutcomeNoProfile
		return report
	}

	eng := engine.New(s.tables.Load(ctx),
		engine.WithPolicy(s.policy),
		engine.WithLogger(log),
		engine.WithMetrics(s.metrics),
	)

	result, err := eng.Detect(ctx, page)
	if err != nil {
		log.Error("error detecting fields", zap.Error(err))
		report.Response = domain.Failure(domain.MsgDetectionError + causeText(err))
		report.Outcome = OutcomeDetectionError
		return report
	}
	report.Detection = result

	if result.Len() == 0 {
		census := result.Census
		log.Info("no fillable fields detected",
			zap.Int("inputs", census.Inputs),
			zap.Int("selects", census.Selects),
			zap.Int("textareas", census.Textareas),
			zap.Int("roots", census.Roots),
		)
		report.Response = domain.Failure(domain.MsgNoFields)
		report.Response.Diagnostics = &census
		report.Outcome = OutcomeNoFields
		return report
	}

	filled := eng.Fill(ctx, result, profile)
	report.Response = domain.Filled(filled, result.Len())
	report.Outcome = OutcomeSuccess
	return report
}

// AutofillHTML runs over a static document and returns the filled markup with
// snapshot attributes removed. Frames with a src are resolved through resolver
// when it is not nil. Filled frames are written back into their iframe srcdoc.
func (s *Service) AutofillHTML(ctx context.Context, markup, pageURL string, resolver dom.FrameResolver) (domain.AutofillResponse, string, error) {
	doc, err := dom.ParseString(markup, pageURL)
	if err != nil {
		return domain.AutofillResponse{}, "", domain.ErrValidation(err.Error())
	}
	page := dom.NewPage(doc)
	page.Resolver = resolver
	page.OnSkip = func(src, reason string) {
		s.metrics.RecordFrameSkipped(reason)
		s.logger.Debug("frame skipped", zap.String("src", src), zap.String("reason", reason))
	}

	resp := s.Autofill(ctx, page)

	if _, err := doc.Flatten(); err != nil {
		return resp, "", domain.ErrInternal("rendering frames").WithCause(err)
	}
	out, err := doc.HTML()
	if err != nil {
		return resp, "", domain.ErrInternal("rendering document").WithCause(err)
	}
	return resp, out, nil
}

func causeText(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return err.Error()
}
