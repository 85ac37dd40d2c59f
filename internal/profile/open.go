package profile

import (
	"context"
	"fmt"
	"sync"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/crypto"
	"github.com/jobfill/jobfill/internal/resilience"
)

// Backend is a KV that owns resources.
type Backend interface {
	KV
	Close() error
}

// Open builds the backend selected by cfg.Store. objects is only consulted for
// the s3 backend and may be nil otherwise. Network backends are guarded by a
// circuit breaker. With STORE_ENCRYPTION_KEY set, records are sealed before
// they reach any backend.
func Open(ctx context.Context, cfg *config.Config, objects ObjectStore) (Backend, error) {
	b, err := open(ctx, cfg, objects)
	if err != nil {
		return nil, err
	}
	if cfg.Store.EncryptionKey == "" {
		return b, nil
	}

	key, err := crypto.ParseKey(cfg.Store.EncryptionKey)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("STORE_ENCRYPTION_KEY: %w", err)
	}
	sealed, err := Seal(b, key)
	if err != nil {
		b.Close()
		return nil, err
	}
	return sealed, nil
}

func open(ctx context.Context, cfg *config.Config, objects ObjectStore) (Backend, error) {
	var remote Backend
	switch cfg.Store.Backend {
	case config.StoreFile, "":
		return nopCloser{NewFileKV(cfg.Store.FilePath)}, nil
	case config.StoreSQLite:
		return NewSQLiteKV(ctx, cfg.Store.SQLitePath)
	case config.StoreRedis:
		kv, err := NewRedisKV(cfg.Redis)
		if err != nil {
			return nil, err
		}
		remote = kv
	case config.StorePostgres:
		kv, err := NewPostgresKV(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		remote = kv
	case config.StoreS3:
		if objects == nil {
			return nil, fmt.Errorf("s3 profile store needs an object client")
		}
		remote = nopCloser{NewObjectKV(objects, cfg.Store.ObjectPrefix)}
	default:
		return nil, fmt.Errorf("unknown profile store %q", cfg.Store.Backend)
	}

	return Guard(remote, resilience.Config{
		Failures: cfg.Store.BreakerFailures,
		Cooldown: cfg.Store.BreakerCooldown,
	}), nil
}

type namedKV interface {
	KV
	Named
}

type nopCloser struct{ namedKV }

func (nopCloser) Close() error { return nil }

// MemoryKV is an in-process store, used by tests and dry runs.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string][]byte)}
}

func (m *MemoryKV) Name() string { return "memory" }

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
