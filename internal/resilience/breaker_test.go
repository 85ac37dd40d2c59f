package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errDown    = errors.New("connection refused")
	errMissing = errors.New("key not found")
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreaker(t *testing.T, failures int) (*Breaker, *clock, *[]string) {
	t.Helper()
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	b := New(Config{
		Name:     "redis",
		Failures: failures,
		Cooldown: 10 * time.Second,
		Ignore:   func(err error) bool { return errors.Is(err, errMissing) },
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	b.now = c.now
	return b, c, &transitions
}

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(Config{Name: "store"})
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "store", b.Name())
	assert.Equal(t, 5, b.failures)
	assert.Equal(t, 30*time.Second, b.cooldown)
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b, _, transitions := newBreaker(t, 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	}
	require.NoError(t, b.Do(ctx, succeed), "a success resets the run")
	for i := 0; i < 2; i++ {
		b.Do(ctx, fail)
	}
	assert.Equal(t, StateClosed, b.State())

	b.Do(ctx, fail)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, []string{"redis:closed->open"}, *transitions)
}

func TestBreaker_RejectsWhileOpen(t *testing.T) {
	b, _, _ := newBreaker(t, 1)
	b.Do(context.Background(), fail)

	called := false
	err := b.Do(context.Background(), func(context.Context) error { called = true; return nil })

	assert.ErrorIs(t, err, ErrOpen)
	assert.Contains(t, err.Error(), "redis")
	assert.False(t, called)
}

func TestBreaker_ProbeCloses(t *testing.T) {
	b, c, transitions := newBreaker(t, 1)
	ctx := context.Background()
	b.Do(ctx, fail)

	c.advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"redis:closed->open", "redis:half-open->closed"}, *transitions)
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, c, _ := newBreaker(t, 1)
	ctx := context.Background()
	b.Do(ctx, fail)

	c.advance(10 * time.Second)
	b.Do(ctx, fail)
	assert.Equal(t, StateOpen, b.State())

	c.advance(5 * time.Second)
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrOpen, "the cooldown restarts")
}

func TestBreaker_SingleProbe(t *testing.T) {
	b, c, _ := newBreaker(t, 1)
	ctx := context.Background()
	b.Do(ctx, fail)
	c.advance(10 * time.Second)

	started := make(chan struct{})
	finish := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Do(ctx, func(context.Context) error {
			close(started)
			<-finish
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrOpen)
	close(finish)
	wg.Wait()

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IgnoredErrorsAreHealthy(t *testing.T) {
	b, _, _ := newBreaker(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Do(ctx, func(context.Context) error { return errMissing }), errMissing)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ContextErrors(t *testing.T) {
	b, _, _ := newBreaker(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)

	err = b.Do(context.Background(), func(context.Context) error { return context.DeadlineExceeded })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateClosed, b.State(), "a slow caller is not a broken store")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
