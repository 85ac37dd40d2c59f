package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/dom"
)

// PlaywrightDriver opens pages in Chromium through playwright-go.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

// NewPlaywrightDriver starts playwright and launches (or connects to) Chromium.
func NewPlaywrightDriver(cfg config.BrowserConfig, logger *zap.Logger) (*PlaywrightDriver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	var browser playwright.Browser
	if cfg.RemoteURL != "" {
		browser, err = pw.Chromium.ConnectOverCDP(cfg.RemoteURL)
	} else {
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(cfg.Headless),
		})
	}
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	logger.Info("browser started",
		zap.String("driver", config.DriverPlaywright),
		zap.Bool("headless", cfg.Headless),
		zap.Bool("remote", cfg.RemoteURL != ""))

	return &PlaywrightDriver{pw: pw, browser: browser, cfg: cfg, logger: logger}, nil
}

func (d *PlaywrightDriver) Name() string { return config.DriverPlaywright }

// Open navigates a new page to rawURL and waits for the DOM to be ready.
func (d *PlaywrightDriver) Open(ctx context.Context, rawURL string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := d.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	timeout := float64(d.cfg.Timeout.Milliseconds())
	page.SetDefaultTimeout(timeout)

	if _, err := page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeout),
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	return &playwrightPage{page: page, logger: d.logger}, nil
}

// Close stops the browser and the playwright server.
func (d *PlaywrightDriver) Close() error {
	if d.browser != nil {
		d.browser.Close()
	}
	if d.pw != nil {
		return d.pw.Stop()
	}
	return nil
}

type playwrightPage struct {
	page   playwright.Page
	logger *zap.Logger
}

func (p *playwrightPage) URL() string { return p.page.URL() }

func (p *playwrightPage) Info(ctx context.Context) (Info, error) {
	var info Info
	raw, err := evaluate(ctx, p.page.MainFrame(), infoJS)
	if err != nil {
		return info, err
	}
	s, _ := raw.(string)
	if err := json.Unmarshal([]byte(s), &info); err != nil {
		return info, fmt.Errorf("decoding page info: %w", err)
	}
	return info, nil
}

func (p *playwrightPage) Frames(ctx context.Context) ([]Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	main := p.page.MainFrame()
	mainURL := main.URL()
	frames := []Frame{playwrightFrame{frame: main}}

	for _, f := range p.page.Frames() {
		if f == main || f.IsDetached() {
			continue
		}
		if !p.reachableChain(mainURL, f, main) {
			p.logger.Debug("skipping frame", zap.String("src", f.URL()), zap.String("reason", "cross-origin"))
			continue
		}
		frames = append(frames, playwrightFrame{frame: f})
	}
	return frames, nil
}

// reachableChain checks f and every ancestor up to the main frame.
func (p *playwrightPage) reachableChain(mainURL string, f, main playwright.Frame) bool {
	for depth := 0; f != nil && f != main; depth++ {
		if depth > dom.MaxRootDepth || !reachable(mainURL, f.URL()) {
			return false
		}
		f = f.ParentFrame()
	}
	return true
}

func (p *playwrightPage) Toast(ctx context.Context, t Toast) error {
	payload, err := t.payload()
	if err != nil {
		return err
	}
	_, err = evaluate(ctx, p.page.MainFrame(), toastJS, payload)
	return err
}

func (p *playwrightPage) Close() error { return p.page.Close() }

type playwrightFrame struct {
	frame playwright.Frame
}

func (f playwrightFrame) URL() string { return f.frame.URL() }

func (f playwrightFrame) Snapshot(ctx context.Context) (string, error) {
	raw, err := evaluate(ctx, f.frame, snapshotJS)
	if err != nil {
		return "", err
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("snapshot returned %T", raw)
	}
	return s, nil
}

func (f playwrightFrame) Apply(ctx context.Context, writes []dom.Write) (int, error) {
	payload, err := encodeWrites(writes)
	if err != nil {
		return 0, err
	}
	raw, err := evaluate(ctx, f.frame, applyJS, payload)
	if err != nil {
		return 0, err
	}
	return toInt(raw), nil
}

func (f playwrightFrame) Cleanup(ctx context.Context) error {
	_, err := evaluate(ctx, f.frame, cleanupJS)
	return err
}

func evaluate(ctx context.Context, frame playwright.Frame, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := frame.Evaluate(script, args...)
	if err != nil {
		return nil, fmt.Errorf("evaluating script in %s: %w", frame.URL(), err)
	}
	return v, nil
}
