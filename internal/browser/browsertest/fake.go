// Package browsertest provides in-memory browser pages for tests. A fake frame
// serves fixed markup as its snapshot and records the writes applied to it.
package browsertest

import (
	"context"
	"errors"
	"sync"

	"github.com/jobfill/jobfill/internal/browser"
	"github.com/jobfill/jobfill/internal/dom"
)

// ErrUnreachable is what a fake frame returns while it is set to fail.
var ErrUnreachable = errors.New("receiving end does not exist")

// Frame is a scriptable fake frame.
type Frame struct {
	FrameURL string
	Markup   string

	mu sync.Mutex
	// SnapshotFailures makes the next N snapshots fail.
	SnapshotFailures int
	// ApplyFailures makes the next N applies fail.
	ApplyFailures int
	Snapshots     int
	Applied       [][]dom.Write
	Cleanups      int
}

func (f *Frame) URL() string { return f.FrameURL }

func (f *Frame) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SnapshotFailures > 0 {
		f.SnapshotFailures--
		return "", ErrUnreachable
	}
	f.Snapshots++
	return f.Markup, nil
}

func (f *Frame) Apply(ctx context.Context, writes []dom.Write) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ApplyFailures > 0 {
		f.ApplyFailures--
		return 0, ErrUnreachable
	}
	f.Applied = append(f.Applied, append([]dom.Write(nil), writes...))
	return len(writes), nil
}

func (f *Frame) Cleanup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cleanups++
	return nil
}

// Writes returns every write applied so far, flattened.
func (f *Frame) Writes() []dom.Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []dom.Write
	for _, batch := range f.Applied {
		out = append(out, batch...)
	}
	return out
}

// Page is a fake tab over a fixed set of frames.
type Page struct {
	PageURL   string
	PageInfo  browser.Info
	FrameList []*Frame

	mu     sync.Mutex
	Toasts []browser.Toast
	Closed bool
}

// NewPage builds a single-frame page serving markup at pageURL.
func NewPage(pageURL, markup string) *Page {
	return &Page{
		PageURL:   pageURL,
		PageInfo:  browser.Info{URL: pageURL},
		FrameList: []*Frame{{FrameURL: pageURL, Markup: markup}},
	}
}

// Main returns the main frame.
func (p *Page) Main() *Frame { return p.FrameList[0] }

func (p *Page) URL() string { return p.PageURL }

func (p *Page) Info(context.Context) (browser.Info, error) { return p.PageInfo, nil }

func (p *Page) Frames(ctx context.Context) ([]browser.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]browser.Frame, len(p.FrameList))
	for i, f := range p.FrameList {
		out[i] = f
	}
	return out, nil
}

func (p *Page) Toast(_ context.Context, t browser.Toast) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Toasts = append(p.Toasts, t)
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// ShownToasts returns a copy of the toasts shown so far.
func (p *Page) ShownToasts() []browser.Toast {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Toast(nil), p.Toasts...)
}

// Driver serves fake pages by URL.
type Driver struct {
	Pages   map[string]*Page
	OpenErr error

	mu     sync.Mutex
	Opened []string
	Closed bool
}

// NewDriver builds a driver serving the given pages.
func NewDriver(pages ...*Page) *Driver {
	d := &Driver{Pages: make(map[string]*Page)}
	for _, p := range pages {
		d.Pages[p.PageURL] = p
	}
	return d
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Open(ctx context.Context, rawURL string) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opened = append(d.Opened, rawURL)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	p, ok := d.Pages[rawURL]
	if !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	return p, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}
