// Package browsertest provides in-memory browser fakes for tests that should
// not need Chrome.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"webresearch/internal/browser"
)

// Site is what a fake page renders for one URL.
type Site struct {
	Title     string
	Selectors map[string]string // selector -> text
	Err       error             // returned by Navigate
	Delay     time.Duration     // navigation latency, honours ctx
}

// Web maps URL to Site. Unknown URLs fail navigation.
type Web map[string]Site

// Launcher counts launches and produces fake browsers serving web.
type Launcher struct {
	Web Web

	// FailLaunches makes the first N launches fail.
	FailLaunches int32
	// FailPages makes NewPage fail for the listed 0-based page creation indexes
	// (counted per browser).
	FailPages map[int]bool

	launches atomic.Int32
	mu       sync.Mutex
	browsers []*Browser
}

// Launch implements browser.Launcher.
func (l *Launcher) Launch(ctx context.Context, _ browser.Config) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := l.launches.Add(1)
	if n <= l.FailLaunches {
		return nil, errors.New("fake launch failure")
	}
	b := &Browser{web: l.Web, failPages: l.FailPages}
	b.connected.Store(true)
	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

// Launches returns how many launch attempts were made.
func (l *Launcher) Launches() int { return int(l.launches.Load()) }

// Browsers returns the successfully launched browsers.
func (l *Launcher) Browsers() []*Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Browser(nil), l.browsers...)
}

// Browser is a fake browser process.
type Browser struct {
	web       Web
	failPages map[int]bool

	connected atomic.Bool
	closed    atomic.Int32
	created   atomic.Int32
	open      atomic.Int32
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := int(b.created.Add(1)) - 1
	if b.failPages[idx] {
		return nil, errors.New("fake page failure")
	}
	b.open.Add(1)
	return &Page{browser: b}, nil
}

func (b *Browser) Connected() bool { return b.connected.Load() }

// Disconnect simulates a crashed browser.
func (b *Browser) Disconnect() { b.connected.Store(false) }

func (b *Browser) Close() error {
	b.closed.Add(1)
	b.connected.Store(false)
	return nil
}

// Closed reports how many times Close was called.
func (b *Browser) Closed() int { return int(b.closed.Load()) }

// OpenPages reports pages created and not yet closed.
func (b *Browser) OpenPages() int { return int(b.open.Load()) }

// Page is a fake tab.
type Page struct {
	browser *Browser

	mu      sync.Mutex
	current *Site
	inUse   atomic.Int32
	closed  atomic.Bool
	// Overlapped is set if two navigations ever ran on this page at once.
	Overlapped atomic.Bool
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.inUse.Add(1) > 1 {
		p.Overlapped.Store(true)
	}
	defer p.inUse.Add(-1)

	site, ok := p.browser.web[url]
	if !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	if site.Delay > 0 {
		select {
		case <-time.After(site.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if site.Err != nil {
		return site.Err
	}
	p.mu.Lock()
	p.current = &site
	p.mu.Unlock()
	return nil
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", nil
	}
	return p.current.Title, nil
}

func (p *Page) Text(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", browser.ErrNoElement
	}
	text, ok := p.current.Selectors[selector]
	if !ok {
		return "", browser.ErrNoElement
	}
	return text, nil
}

func (p *Page) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.browser.open.Add(-1)
	}
	return nil
}
