// Package engine implements field detection and filling: it enumerates the
// controls of a page, scores each against the mapping table, and writes
// profile values into the winners.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/mapping"
	"github.com/jobfill/jobfill/internal/observability"
)

// Candidate pairs a control with its best matching rule.
type Candidate struct {
	Element    *dom.Element
	Rule       *mapping.Rule
	Confidence float64
}

// MappingKey returns the key of the winning rule.
func (c Candidate) MappingKey() string { return c.Rule.Key }

// ProfileField returns the profile field the candidate is filled from.
func (c Candidate) ProfileField() string { return c.Rule.Mapping.ProfileField }

// DetectionResult is the ordered outcome of one detection pass. At most one
// candidate exists per element and per radio group.
type DetectionResult struct {
	Candidates []Candidate
	Census     domain.Census
}

// Len returns the number of candidates.
func (r DetectionResult) Len() int { return len(r.Candidates) }

// Engine detects and fills form fields against a mapping table.
type Engine struct {
	table   *mapping.Table
	policy  Policy
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the scoring policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records fill failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over table. A nil table detects nothing.
func New(table *mapping.Table, opts ...Option) *Engine {
	if table == nil {
		table = mapping.Empty()
	}
	e := &Engine{
		table:  table,
		policy: DefaultPolicy,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the mapping table the engine scores against.
func (e *Engine) Table() *mapping.Table { return e.table }

var placeholderPattern = regexp.MustCompile(`(?i)^(select|choose|please select|--|\s*$)`)

// IsPlaceholder reports whether a control value is a prompt rather than an answer.
func IsPlaceholder(v string) bool {
	return placeholderPattern.MatchString(v)
}

// Detect enumerates every reachable control of page and resolves its best
// matching rule. Enumeration or scoring failures abort the pass.
func (e *Engine) Detect(ctx context.Context, page *dom.Page) (result DetectionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during detection",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			result = DetectionResult{}
			err = domain.ErrDetectionFailed(fmt.Errorf("%v", r))
		}
	}()

	rules := e.table.Rules()
	seenGroups := make(map[dom.GroupKey]bool)

	for root := range page.Roots() {
		if err := ctx.Err(); err != nil {
			return DetectionResult{}, err
		}
		for _, el := range root.Controls() {
			if !e.eligible(el, seenGroups) {
				continue
			}

			match, ok := e.policy.bestMatch(el, rules)
			if !ok {
				continue
			}
			e.logger.Debug("field detected",
				zap.String("mapping", match.Rule.Key),
				zap.String("kind", el.Kind.String()),
				zap.String("name", el.Name()),
				zap.String("id", el.ID()),
				zap.Float64("confidence", match.Confidence),
			)
			result.Candidates = append(result.Candidates, Candidate{
				Element:    el,
				Rule:       match.Rule,
				Confidence: match.Confidence,
			})
		}
	}

	result.Census = page.Census()
	e.logger.Debug("detection finished",
		zap.Int("roots", result.Census.Roots),
		zap.Int("controls", result.Census.Total()),
		zap.Int("candidates", len(result.Candidates)),
	)
	return result, nil
}

// eligible applies the enumeration filters: rendered, not hidden-type, not
// already answered, and the first representative of its radio group.
func (e *Engine) eligible(el *dom.Element, seenGroups map[dom.GroupKey]bool) bool {
	if el.Kind == dom.KindHidden || !el.Visible() {
		return false
	}

	switch el.Kind {
	case dom.KindRadio:
		key := el.GroupKey()
		if seenGroups[key] {
			return false
		}
		seenGroups[key] = true
		for _, r := range el.RadioGroup() {
			if r.Checked() {
				return false
			}
		}
		return true
	case dom.KindCheckbox:
		return !el.Checked()
	default:
		v := el.Value()
		return v == "" || IsPlaceholder(v)
	}
}
