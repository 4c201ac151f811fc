// Package chrome manages the headless browser used to print HTML to PDF.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"docconv/internal/config"
	"docconv/internal/infra/logging"
)

// ErrPoolClosed is returned by Acquire and Restart after Close.
var ErrPoolClosed = errors.New("chrome pool closed")

// Pool hands out browser tabs of one shared Chrome process, bounded by a
// semaphore sized by pdf.chrome_pool_size.
type Pool struct {
	cfg config.Config

	mu            sync.Mutex
	sem           chan struct{}
	profileDir    string
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
	closed        bool
	restarts      int
	lastRestart   time.Time
}

// Tab is a browser target leased from the pool. Ctx is valid until Release.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Capacity     int       `json:"capacity"`
	Idle         int       `json:"idle"`
	InUse        int       `json:"in_use"`
	PoolSizeConf int       `json:"pool_size_conf"`
	ProfileDir   string    `json:"profile_dir"`
	TimeoutSecs  int       `json:"timeout_secs"`
	Restarts     int       `json:"restarts"`
	LastRestart  time.Time `json:"last_restart"`
}

// NewPool prepares a pool. The browser itself starts lazily on the first render.
func NewPool(cfg config.Config) (*Pool, error) {
	if cfg.PDF.ChromePoolSize <= 0 {
		return nil, errors.New("chrome pool disabled (chrome_pool_size <= 0)")
	}

	p := &Pool{
		cfg: cfg,
		sem: make(chan struct{}, cfg.PDF.ChromePoolSize),
	}
	for i := 0; i < cfg.PDF.ChromePoolSize; i++ {
		p.sem <- struct{}{}
	}
	if err := p.startBrowser(); err != nil {
		return nil, err
	}
	return p, nil
}

// startBrowser creates a fresh profile dir and allocator. Caller holds mu or owns p exclusively.
func (p *Pool) startBrowser() error {
	dir, err := CreateProfileDir(p.cfg, "chrome-profile-*")
	if err != nil {
		return err
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(p.cfg, dir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	p.profileDir = dir
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	return nil
}

// ensureBrowser launches the shared browser on first use so every tab
// attaches to the same process. A browser whose connection was lost has its
// root context canceled by chromedp; it is replaced before the launch. A
// failed launch leaves fresh contexts behind for the next attempt. Caller
// holds mu.
func (p *Pool) ensureBrowser() error {
	if p.browserCtx == nil {
		return nil
	}
	if p.started && p.browserCtx.Err() != nil {
		logging.Warn("Chrome connection lost, relaunching", "profile_dir", p.profileDir)
		p.stopBrowser()
		if err := p.startBrowser(); err != nil {
			return fmt.Errorf("restart chrome: %w", err)
		}
		p.restarts++
		p.lastRestart = time.Now()
	}
	if p.started || chromedp.FromContext(p.browserCtx) == nil {
		return nil
	}
	if err := chromedp.Run(p.browserCtx); err != nil {
		p.stopBrowser()
		if serr := p.startBrowser(); serr != nil {
			logging.Error("Chrome profile reset failed", "error", serr)
		}
		return fmt.Errorf("start chrome: %w", err)
	}
	p.started = true
	logging.Info("Chrome started", "profile_dir", p.profileDir)
	return nil
}

// Disconnected reports whether the shared browser was running and its
// connection has since been lost.
func (p *Pool) Disconnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && p.browserCtx != nil && p.browserCtx.Err() != nil
}

func (p *Pool) stopBrowser() {
	p.started = false
	if p.browserCancel != nil {
		p.browserCancel()
		p.browserCancel = nil
	}
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCancel = nil
	}
	if p.profileDir != "" {
		_ = os.RemoveAll(p.profileDir)
		p.profileDir = ""
	}
}

// Acquire blocks until a tab slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	closed := p.closed
	sem := p.sem
	p.mu.Unlock()
	if closed || sem == nil {
		return nil, ErrPoolClosed
	}

	select {
	case <-sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		sem <- struct{}{}
		return nil, ErrPoolClosed
	}
	if err := p.ensureBrowser(); err != nil {
		sem <- struct{}{}
		return nil, err
	}
	parent := p.browserCtx
	if parent == nil {
		parent = context.Background()
	}
	tabCtx, cancel := chromedp.NewContext(parent)
	return &Tab{Ctx: tabCtx, cancel: cancel}, nil
}

// Release closes the tab and returns its slot. renderErr is used for logging only.
func (p *Pool) Release(tab *Tab, renderErr error) {
	if tab == nil {
		return
	}
	if tab.cancel != nil {
		tab.cancel()
	}
	if renderErr != nil && IsSessionInterrupted(renderErr) {
		logging.Warn("Chrome tab released after interrupted session", "error", renderErr)
	}

	p.mu.Lock()
	sem := p.sem
	p.mu.Unlock()
	select {
	case sem <- struct{}{}:
	default:
	}
}

// Restart replaces the browser process and its profile directory.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.stopBrowser()
	if err := p.startBrowser(); err != nil {
		return fmt.Errorf("restart chrome: %w", err)
	}
	p.restarts++
	p.lastRestart = time.Now()
	logging.Warn("Chrome pool restarted", "restarts", p.restarts, "profile_dir", p.profileDir)
	return nil
}

// Close stops the browser. It is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopBrowser()
}

// Stats reports capacity and usage.
func (p *Pool) Stats(timeoutSecs int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		PoolSizeConf: p.cfg.PDF.ChromePoolSize,
		ProfileDir:   p.profileDir,
		TimeoutSecs:  timeoutSecs,
		Restarts:     p.restarts,
		LastRestart:  p.lastRestart,
	}
	if p.closed || p.sem == nil {
		return s
	}
	s.Enabled = true
	s.Capacity = cap(p.sem)
	s.Idle = len(p.sem)
	s.InUse = s.Capacity - s.Idle
	return s
}

// CreateProfileDir makes a fresh Chrome user data dir under
// pdf.user_data_dir, creating the base first. An empty base means the system
// temp dir.
func CreateProfileDir(cfg config.Config, pattern string) (string, error) {
	base := cfg.PDF.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("cannot create chrome profile base %q: %w", base, err)
	}
	dir, err := os.MkdirTemp(base, pattern)
	if err != nil {
		return "", fmt.Errorf("cannot create chrome profile dir: %w", err)
	}
	return dir, nil
}

// IsSessionInterrupted reports whether err means the browser session went
// away rather than the document failing to render.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return BrowserGone(err)
}

// BrowserGone reports whether err came from a dead or disconnected browser
// process, as opposed to a timeout or a cancelled request.
func BrowserGone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket", "browser closed", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
