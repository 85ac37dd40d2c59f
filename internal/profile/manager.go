// Package profile persists the user's profile record behind a small key-value
// contract and implements the profile store operations on top of it.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
)

// DefaultKey is the storage key of the profile record.
const DefaultKey = "userProfile"

// ErrNotFound is returned by a KV when the key holds no value.
var ErrNotFound = errors.New("key not found")

// KV is the persistence contract: a single-key get, set and remove over a
// synced store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Named is implemented by backends that report their name in logs and metrics.
type Named interface {
	Name() string
}

// Manager implements the profile store operations over a KV.
type Manager struct {
	kv      KV
	key     string
	backend string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithKey overrides the storage key.
func WithKey(key string) ManagerOption {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records store operations.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a profile manager over kv.
func NewManager(kv KV, opts ...ManagerOption) *Manager {
	m := &Manager{
		kv:      kv,
		key:     DefaultKey,
		backend: "custom",
		logger:  zap.NewNop(),
	}
	if n, ok := kv.(Named); ok {
		m.backend = n.Name()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backend returns the backend name.
func (m *Manager) Backend() string { return m.backend }

// Get returns the stored profile, or the defaulted empty profile when nothing
// is stored or the store cannot be read. It never returns nil.
func (m *Manager) Get(ctx context.Context) domain.Profile {
	data, err := m.timed("get", func() ([]byte, error) { return m.kv.Get(ctx, m.key) })
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Error("error getting profile", zap.String("backend", m.backend), zap.Error(err))
		}
		return domain.DefaultProfile()
	}

	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil || p == nil {
		m.logger.Error("stored profile is unreadable", zap.String("backend", m.backend), zap.Error(err))
		return domain.DefaultProfile()
	}
	return p
}

// Save replaces the stored profile wholesale.
func (m *Manager) Save(ctx context.Context, p domain.Profile) error {
	if p == nil {
		return domain.ErrInvalidProfile("profile must be an object")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return domain.ErrInvalidProfile(err.Error())
	}
	_, err = m.timed("set", func() ([]byte, error) { return nil, m.kv.Set(ctx, m.key, data) })
	if err != nil {
		return domain.ErrStore("save", err)
	}
	m.logger.Debug("profile saved", zap.String("backend", m.backend), zap.Int("fields", len(p)))
	return nil
}

// Clear removes the stored profile. Clearing an absent profile succeeds.
func (m *Manager) Clear(ctx context.Context) error {
	_, err := m.timed("remove", func() ([]byte, error) { return nil, m.kv.Remove(ctx, m.key) })
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.ErrStore("clear", err)
	}
	return nil
}

// UpdateField sets one field of the stored profile. The field must belong to
// the schema and categorical fields only accept their declared choices.
func (m *Manager) UpdateField(ctx context.Context, field string, value any) error {
	spec, ok := domain.LookupField(field)
	if !ok {
		return domain.ErrValidationField(field, fmt.Sprintf("unknown profile field %q", field))
	}
	if s, isString := value.(string); isString && spec.Categorical() && s != "" && !spec.Allows(s) {
		return domain.ErrValidationField(field, fmt.Sprintf("%q is not one of %v", s, spec.Choices))
	}

	p := m.Get(ctx)
	p[field] = value
	return m.Save(ctx, p)
}

// Export serializes the current profile as pretty-printed JSON.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	data, err := json.MarshalIndent(m.Get(ctx), "", "  ")
	if err != nil {
		return nil, domain.ErrInternal("encoding profile").WithCause(err)
	}
	return data, nil
}

// Import parses a serialized profile and stores it, replacing the current one.
// Anything but a JSON object at the top level is rejected.
func (m *Manager) Import(ctx context.Context, data []byte) error {
	p, err := Decode(data)
	if err != nil {
		return err
	}
	return m.Save(ctx, p)
}

// Decode parses a serialized profile record.
func Decode(data []byte) (domain.Profile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.ErrInvalidProfile("top-level value must be a JSON object")
	}
	var p domain.Profile
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, domain.ErrInvalidProfile(err.Error())
	}
	return p, nil
}

func (m *Manager) timed(op string, fn func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	data, err := fn()
	recorded := err
	if errors.Is(err, ErrNotFound) {
		recorded = nil
	}
	m.metrics.RecordProfileStoreOp(m.backend, op, recorded, time.Since(start))
	return data, err
}
