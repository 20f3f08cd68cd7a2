package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"webresearch/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// blockedResources are dropped when Config.BlockResources is set; text
// extraction never needs them and they dominate page weight.
var blockedResources = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeMedia,
}

// RodLauncher launches a local Chrome through rod's launcher and connects to it.
// The process is not tied to ctx; it lives until Browser.Close.
func RodLauncher(ctx context.Context, cfg Config) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := launcher.New().Headless(cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	for _, rawFlag := range cfg.Launch {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	logging.BrowserDebug("Chrome connected at %s", controlURL)
	return &rodBrowser{cfg: cfg, browser: b, launcher: l}, nil
}

type rodBrowser struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher

	closeOnce sync.Once
	closeErr  error
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Detach from the creation context so the page outlives this call.
	page = page.Context(context.Background())

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.GetViewportWidth(),
		Height:            b.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			logging.BrowserWarn("failed to set user agent: %v", err)
		}
	}

	rp := &rodPage{page: page, navTimeout: b.cfg.NavigationTimeout()}
	if b.cfg.BlockResources {
		router := page.HijackRequests()
		for _, rt := range blockedResources {
			if err := router.Add("*", rt, func(h *rod.Hijack) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			}); err != nil {
				logging.BrowserWarn("failed to block %s requests: %v", rt, err)
			}
		}
		go router.Run()
		rp.router = router
	}
	return rp, nil
}

// Connected pings the browser; a dead websocket fails the version call.
func (b *rodBrowser) Connected() bool {
	_, err := b.browser.Version()
	return err == nil
}

func (b *rodBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.browser.Close()
		b.launcher.Kill()
	})
	return b.closeErr
}

type rodPage struct {
	page       *rod.Page
	router     *rod.HijackRouter
	navTimeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	page := p.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	return ctx.Err()
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.Title, nil
}

func (p *rodPage) Text(ctx context.Context, selector string) (string, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", selector, err)
	}
	if !has {
		return "", ErrNoElement
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("text of %s: %w", selector, err)
	}
	return text, nil
}

func (p *rodPage) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}
