// Package browser drives live pages for the autofill engine. A driver opens a
// page, snapshots each same-origin frame into the dom model and replays the
// write journal produced by a fill back into the live controls.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/dom"
)

// ErrCommunication marks failures talking to the page (snapshot, apply,
// toast), as opposed to failures of the fill itself. Callers retry these.
var ErrCommunication = errors.New("page communication failed")

// cleanupTimeout bounds stamp removal once the run context is done.
const cleanupTimeout = 2 * time.Second

// Driver opens live pages.
type Driver interface {
	Name() string
	Open(ctx context.Context, rawURL string) (Page, error)
	Close() error
}

// Page is one open browser tab.
type Page interface {
	URL() string
	Info(ctx context.Context) (Info, error)
	// Frames returns the main frame first, then every frame sharing its origin.
	Frames(ctx context.Context) ([]Frame, error)
	Toast(ctx context.Context, t Toast) error
	Close() error
}

// Frame is one document of a page that scripts can reach.
type Frame interface {
	URL() string
	Snapshot(ctx context.Context) (string, error)
	Apply(ctx context.Context, writes []dom.Write) (int, error)
	Cleanup(ctx context.Context) error
}

// Info describes the page for the job-application heuristic.
type Info struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ToastKind selects the notification style.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastFailure ToastKind = "failure"
)

// Toast is a transient in-page notification.
type Toast struct {
	Message  string
	Kind     ToastKind
	Duration time.Duration
}

func (t Toast) payload() (string, error) {
	data, err := json.Marshal(struct {
		Message string    `json:"message"`
		Kind    ToastKind `json:"kind"`
		MS      int64     `json:"ms"`
	}{t.Message, t.Kind, t.Duration.Milliseconds()})
	return string(data), err
}

// New builds the driver selected by cfg.
func New(cfg config.BrowserConfig, logger *zap.Logger) (Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.DriverPlaywright, "":
		return NewPlaywrightDriver(cfg, logger)
	case config.DriverRod:
		return NewRodDriver(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

// Capture is a dom.Page built from the snapshots of a live page, remembering
// which frame each document came from.
type Capture struct {
	Page   *dom.Page
	frames []Frame
}

// Snapshot captures every reachable frame of p.
func Snapshot(ctx context.Context, p Page) (*Capture, error) {
	frames, err := p.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing frames: %v", ErrCommunication, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: page has no frames", ErrCommunication)
	}

	c := &Capture{Page: &dom.Page{}}
	for i, f := range frames {
		markup, err := f.Snapshot(ctx)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("%w: snapshot %s: %v", ErrCommunication, f.URL(), err)
			}
			// A frame navigating away mid-snapshot is skipped like a cross-origin one.
			continue
		}
		c.frames = append(c.frames, f)
		doc, err := dom.ParseString(markup, f.URL())
		if err != nil {
			c.Cleanup(ctx)
			return nil, fmt.Errorf("parsing snapshot of %s: %w", f.URL(), err)
		}
		c.Page.Documents = append(c.Page.Documents, doc)
	}
	return c, nil
}

// Replay applies the journaled writes of every document to its frame. The
// snapshot stamps are removed whether or not every apply succeeded. It
// returns the number of writes applied.
func (c *Capture) Replay(ctx context.Context) (int, error) {
	defer c.Cleanup(ctx)

	applied := 0
	for i, doc := range c.Page.Documents {
		writes := stamped(doc.Writes())
		if len(writes) > 0 {
			n, err := c.frames[i].Apply(ctx, writes)
			if err != nil {
				return applied, fmt.Errorf("%w: apply %s: %v", ErrCommunication, c.frames[i].URL(), err)
			}
			applied += n
		}
	}
	return applied, nil
}

// Cleanup removes the snapshot stamps from every captured frame. Failures are
// ignored, and it still runs for cleanupTimeout after ctx is done.
func (c *Capture) Cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	for _, f := range c.frames {
		_ = f.Cleanup(ctx)
	}
}

// Pending returns the number of writes waiting to be replayed.
func (c *Capture) Pending() int {
	n := 0
	for _, doc := range c.Page.Documents {
		n += len(stamped(doc.Writes()))
	}
	return n
}

func stamped(writes []dom.Write) []dom.Write {
	out := writes[:0:0]
	for _, w := range writes {
		if w.Target != "" {
			out = append(out, w)
		}
	}
	return out
}

// reachable reports whether a frame at frameURL can be scripted from a page at
// mainURL: same origin, or an inheriting blank/srcdoc document.
func reachable(mainURL, frameURL string) bool {
	frameURL = strings.TrimSpace(frameURL)
	if frameURL == "" || strings.HasPrefix(frameURL, "about:") {
		return true
	}
	base, err := url.Parse(mainURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(frameURL)
	if err != nil {
		return false
	}
	return dom.SameOrigin(base, base.ResolveReference(u))
}

func encodeWrites(writes []dom.Write) (string, error) {
	data, err := json.Marshal(writes)
	if err != nil {
		return "", fmt.Errorf("encoding writes: %w", err)
	}
	return string(data), nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
