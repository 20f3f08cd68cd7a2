package browser

import (
	"context"
	"fmt"
	"sync"

	"webresearch/internal/logging"
)

type pooledBrowser struct {
	id     int
	b      Browser       // set before ready closes
	err    error         // launch error, set before ready closes
	ready  chan struct{} // closed when the launch finished
	active int           // pages handed out or reserved
}

func (pb *pooledBrowser) up() bool {
	select {
	case <-pb.ready:
		return pb.err == nil
	default:
		return false
	}
}

// Pool hands out pages from up to BrowserBudget independent browsers. It is
// the fallback for batches larger than one browser's page budget.
//
// The mutex only guards bookkeeping. Launches and page creation run outside
// it; callers that pick a browser still launching wait on its ready channel.
type Pool struct {
	cfg    Config
	launch Launcher

	mu       sync.Mutex
	browsers []*pooledBrowser
	nextID   int
	closed   bool
}

// NewPool creates an empty pool; browsers launch on demand.
func NewPool(cfg Config, launch Launcher) *Pool {
	return &Pool{cfg: cfg, launch: launch}
}

// Warm launches the first browser so a machine without Chrome fails fast.
func (p *Pool) Warm(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if len(p.browsers) > 0 {
		p.mu.Unlock()
		return nil
	}
	pb := p.addLocked()
	p.mu.Unlock()

	p.start(ctx, pb)
	return pb.err
}

// Acquire returns a fresh page and a release func that closes it. Release is
// safe to call more than once.
func (p *Pool) Acquire(ctx context.Context) (Page, func(), error) {
	pb, err := p.reserve(ctx)
	if err != nil {
		return nil, nil, err
	}

	page, err := pb.b.NewPage(ctx)
	if err != nil {
		p.unreserve(pb)
		return nil, nil, fmt.Errorf("browser %d: %w", pb.id, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			closeQuietly(fmt.Sprintf("pooled page on browser %d", pb.id), page)
			p.unreserve(pb)
		})
	}
	return page, release, nil
}

// reserve claims a page slot on a running browser, launching a new one when
// the pool has room. A failed launch falls back to the least loaded running
// browser.
func (p *Pool) reserve(ctx context.Context) (*pooledBrowser, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.pruneLocked()
	pb, launch := p.pickLocked()
	pb.active++
	p.mu.Unlock()

	if launch {
		p.start(ctx, pb)
	}
	select {
	case <-pb.ready:
	case <-ctx.Done():
		p.unreserve(pb)
		return nil, ctx.Err()
	}
	if pb.err == nil {
		return pb, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pb.active--
	if p.closed {
		return nil, ErrClosed
	}
	least := p.leastLoadedLocked(true)
	if least == nil {
		return nil, pb.err
	}
	logging.BrowserWarn("Pool: launch failed, reusing browser %d: %v", least.id, pb.err)
	least.active++
	return least, nil
}

func (p *Pool) unreserve(pb *pooledBrowser) {
	p.mu.Lock()
	pb.active--
	p.mu.Unlock()
}

// pickLocked prefers the least loaded browser with spare page budget, then a
// new browser while the pool has room, then the least loaded browser anyway.
// launch reports that the caller must start the returned browser.
func (p *Pool) pickLocked() (pb *pooledBrowser, launch bool) {
	least := p.leastLoadedLocked(false)
	if least != nil && least.active < p.cfg.PageBudget() {
		return least, false
	}
	if least == nil || len(p.browsers) < p.cfg.BrowserBudget() {
		return p.addLocked(), true
	}
	return least, false
}

// leastLoadedLocked returns the browser with the fewest active pages,
// optionally only among those already running.
func (p *Pool) leastLoadedLocked(runningOnly bool) *pooledBrowser {
	var least *pooledBrowser
	for _, pb := range p.browsers {
		if runningOnly && !pb.up() {
			continue
		}
		if least == nil || pb.active < least.active {
			least = pb
		}
	}
	return least
}

// addLocked registers a browser slot whose launch is still pending.
func (p *Pool) addLocked() *pooledBrowser {
	p.nextID++
	pb := &pooledBrowser{id: p.nextID, ready: make(chan struct{})}
	p.browsers = append(p.browsers, pb)
	return pb
}

// start launches pb without holding the lock and publishes the outcome.
func (p *Pool) start(ctx context.Context, pb *pooledBrowser) {
	b, err := p.launch(ctx, p.cfg)

	p.mu.Lock()
	defer p.mu.Unlock()
	defer close(pb.ready)

	if err == nil && p.closed {
		closeQuietly(fmt.Sprintf("browser %d", pb.id), b)
		err = ErrClosed
	}
	if err != nil {
		pb.err = fmt.Errorf("launch pooled browser: %w", err)
		p.removeLocked(pb)
		return
	}
	pb.b = b
	logging.Browser("Pool: launched browser %d (%d/%d)", pb.id, len(p.browsers), p.cfg.BrowserBudget())
}

func (p *Pool) removeLocked(target *pooledBrowser) {
	for i, pb := range p.browsers {
		if pb == target {
			p.browsers = append(p.browsers[:i], p.browsers[i+1:]...)
			return
		}
	}
}

// pruneLocked drops running browsers that lost their connection.
func (p *Pool) pruneLocked() {
	kept := p.browsers[:0]
	for _, pb := range p.browsers {
		if !pb.up() || pb.b.Connected() {
			kept = append(kept, pb)
			continue
		}
		logging.BrowserWarn("Pool: pruning disconnected browser %d", pb.id)
		closeQuietly(fmt.Sprintf("browser %d", pb.id), pb.b)
	}
	for i := len(kept); i < len(p.browsers); i++ {
		p.browsers[i] = nil
	}
	p.browsers = kept
}

// Size returns the number of running browsers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, pb := range p.browsers {
		if pb.up() {
			n++
		}
	}
	return n
}

// PageFor implements PageSource; the index is ignored.
func (p *Pool) PageFor(ctx context.Context, _ int) (Page, func(), error) {
	return p.Acquire(ctx)
}

// Strategy implements PageSource.
func (p *Pool) Strategy() Strategy { return StrategyPool }

// CloseAll closes every browser. Idempotent; errors are logged.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, pb := range p.browsers {
		if pb.up() {
			closeQuietly(fmt.Sprintf("browser %d", pb.id), pb.b)
		}
	}
	p.browsers = nil
}
