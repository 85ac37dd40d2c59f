package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/dom"
)

// RodDriver opens pages through go-rod, optionally with stealth patches.
type RodDriver struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

// NewRodDriver launches a local Chrome, or connects to cfg.RemoteURL.
func NewRodDriver(cfg config.BrowserConfig, logger *zap.Logger) (*RodDriver, error) {
	d := &RodDriver{cfg: cfg, logger: logger}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Stealth {
			l = l.Set("disable-blink-features", "AutomationControlled")
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		wsURL = u
		d.lnch = l
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		d.cleanupLauncher()
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	d.browser = b

	logger.Info("browser started",
		zap.String("driver", config.DriverRod),
		zap.Bool("headless", cfg.Headless),
		zap.Bool("stealth", cfg.Stealth),
		zap.Bool("remote", cfg.RemoteURL != ""))

	return d, nil
}

func (d *RodDriver) Name() string { return config.DriverRod }

// Open creates a tab, navigates to rawURL and waits for the load event.
func (d *RodDriver) Open(ctx context.Context, rawURL string) (Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if d.cfg.Stealth {
		page, err = stealth.Page(d.browser)
	} else {
		page, err = d.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("creating tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(rawURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		d.logger.Warn("wait load timeout", zap.String("url", rawURL), zap.Error(err))
	}

	return &rodPage{page: page, url: rawURL, logger: d.logger}, nil
}

// Close closes the browser and kills a locally launched Chrome.
func (d *RodDriver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	d.cleanupLauncher()
	return err
}

func (d *RodDriver) cleanupLauncher() {
	if d.lnch != nil {
		d.lnch.Kill()
		d.lnch = nil
	}
}

type rodPage struct {
	page   *rod.Page
	url    string
	logger *zap.Logger
}

func (p *rodPage) URL() string { return p.url }

func (p *rodPage) Info(ctx context.Context) (Info, error) {
	var info Info
	res, err := p.page.Context(ctx).Eval(infoJS)
	if err != nil {
		return info, fmt.Errorf("evaluating page info: %w", err)
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &info); err != nil {
		return info, fmt.Errorf("decoding page info: %w", err)
	}
	return info, nil
}

// Frames walks iframe elements breadth-first, descending only into frames
// whose own origin is reachable from the main document.
func (p *rodPage) Frames(ctx context.Context) ([]Frame, error) {
	main, err := newRodFrame(ctx, p.page)
	if err != nil {
		return nil, err
	}
	frames := []Frame{main}

	type queued struct {
		page  *rod.Page
		depth int
	}
	queue := []queued{{p.page, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= dom.MaxRootDepth {
			continue
		}

		iframes, err := cur.page.Context(ctx).Elements("iframe")
		if err != nil {
			p.logger.Debug("listing iframes failed", zap.Error(err))
			continue
		}
		for _, el := range iframes {
			src := ""
			if prop, err := el.Property("src"); err == nil {
				src = prop.Str()
			}
			if !reachable(main.URL(), src) {
				p.logger.Debug("skipping frame", zap.String("src", src), zap.String("reason", "cross-origin"))
				continue
			}
			fp, err := el.Frame()
			if err != nil {
				p.logger.Debug("skipping frame", zap.String("src", src), zap.Error(err))
				continue
			}
			f, err := newRodFrame(ctx, fp)
			if err != nil {
				continue
			}
			frames = append(frames, f)
			queue = append(queue, queued{fp, cur.depth + 1})
		}
	}
	return frames, nil
}

func (p *rodPage) Toast(ctx context.Context, t Toast) error {
	payload, err := t.payload()
	if err != nil {
		return err
	}
	if _, err := p.page.Context(ctx).Eval(toastJS, payload); err != nil {
		return fmt.Errorf("showing toast: %w", err)
	}
	return nil
}

func (p *rodPage) Close() error { return p.page.Close() }

type rodFrame struct {
	page *rod.Page
	url  string
}

func newRodFrame(ctx context.Context, page *rod.Page) (rodFrame, error) {
	res, err := page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return rodFrame{}, fmt.Errorf("reading frame url: %w", err)
	}
	return rodFrame{page: page, url: res.Value.Str()}, nil
}

func (f rodFrame) URL() string { return f.url }

func (f rodFrame) Snapshot(ctx context.Context) (string, error) {
	res, err := f.page.Context(ctx).Eval(snapshotJS)
	if err != nil {
		return "", fmt.Errorf("snapshot of %s: %w", f.url, err)
	}
	return res.Value.Str(), nil
}

func (f rodFrame) Apply(ctx context.Context, writes []dom.Write) (int, error) {
	payload, err := encodeWrites(writes)
	if err != nil {
		return 0, err
	}
	res, err := f.page.Context(ctx).Eval(applyJS, payload)
	if err != nil {
		return 0, fmt.Errorf("applying writes to %s: %w", f.url, err)
	}
	return res.Value.Int(), nil
}

func (f rodFrame) Cleanup(ctx context.Context) error {
	if _, err := f.page.Context(ctx).Eval(cleanupJS); err != nil {
		return fmt.Errorf("cleanup of %s: %w", f.url, err)
	}
	return nil
}
