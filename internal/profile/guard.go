package profile

import (
	"context"
	"errors"

	"github.com/jobfill/jobfill/internal/resilience"
)

// GuardedKV puts a circuit breaker in front of a remote backend. While the
// breaker is open calls fail immediately and Manager.Get falls back to the
// defaulted profile.
type GuardedKV struct {
	Backend
	breaker *resilience.Breaker
}

// Guard wraps b with a breaker. Missing keys do not count as failures.
func Guard(b Backend, cfg resilience.Config) *GuardedKV {
	if cfg.Name == "" {
		cfg.Name = backendName(b)
	}
	cfg.Ignore = func(err error) bool { return errors.Is(err, ErrNotFound) }
	return &GuardedKV{Backend: b, breaker: resilience.New(cfg)}
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedKV) Breaker() *resilience.Breaker { return g.breaker }

func (g *GuardedKV) Name() string { return backendName(g.Backend) }

func (g *GuardedKV) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = g.Backend.Get(ctx, key)
		return err
	})
	return data, err
}

func (g *GuardedKV) Set(ctx context.Context, key string, value []byte) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.Backend.Set(ctx, key, value)
	})
}

func (g *GuardedKV) Remove(ctx context.Context, key string) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.Backend.Remove(ctx, key)
	})
}

// Health reports an open breaker, then probes the backend when it can.
func (g *GuardedKV) Health(ctx context.Context) error {
	if g.breaker.State() == resilience.StateOpen {
		return resilience.ErrOpen
	}
	if h, ok := g.Backend.(interface{ Health(context.Context) error }); ok {
		return h.Health(ctx)
	}
	return nil
}

func backendName(kv KV) string {
	if n, ok := kv.(Named); ok {
		return n.Name()
	}
	return "custom"
}
