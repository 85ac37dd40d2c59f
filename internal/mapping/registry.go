// Package mapping loads the field mapping table: the ordered set of rules
// that tell the engine which page controls correspond to which profile fields.
package mapping

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
)

// State is the load state of a Registry.
type State int

const (
	StateNotLoaded State = iota
	StateLoaded
	StateLoadedEmpty
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateLoadedEmpty:
		return "loaded-empty"
	default:
		return "not-loaded"
	}
}

// Registry loads the mapping table once per process and memoizes it. A failed
// load yields an empty table and is retried by the next Load.
type Registry struct {
	source  Source
	logger  *zap.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	table *Table
	state State
	err   error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics records load attempts.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates a registry over source. A nil source uses the embedded
// default document.
func NewRegistry(source Source, opts ...Option) *Registry {
	if source == nil {
		source = EmbeddedSource{}
	}
	r := &Registry{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the mapping table, loading it on first use. It never fails:
// when the document cannot be fetched or parsed the error is logged and
// recorded and an empty table is returned.
func (r *Registry) Load(ctx context.Context) *Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.table != nil {
		return r.table
	}

	table, err := r.load(ctx)
	r.metrics.RecordMappingLoad(r.source.Name(), err, table.Len())
	if err != nil {
		r.err = domain.ErrMappingLoad(r.source.Name(), err)
		r.state = StateLoadedEmpty
		r.logger.Error("failed to load field mappings",
			zap.String("source", r.source.Name()),
			zap.Error(err),
		)
		return table
	}

	r.err = nil
	r.table = table
	r.state = StateLoaded
	if table.Len() == 0 {
		r.state = StateLoadedEmpty
	}
	r.logger.Info("field mappings loaded",
		zap.String("source", r.source.Name()),
		zap.Int("rules", table.Len()),
	)
	return table
}

func (r *Registry) load(ctx context.Context) (*Table, error) {
	data, format, err := r.source.Fetch(ctx)
	if err != nil {
		return Empty(), err
	}
	entries, err := decode(data, format)
	if err != nil {
		return Empty(), err
	}
	return build(entries, r.logger), nil
}

// State reports the current load state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error of the last failed load, if it has not since succeeded.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
