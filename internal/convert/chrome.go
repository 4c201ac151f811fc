package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"docconv/internal/config"
	"docconv/internal/infra/chrome"
	"docconv/internal/infra/logging"
)

const (
	acquireTimeout = 5 * time.Second
	readyPoll      = 50 * time.Millisecond
)

// injectStylesheets appends one <style> element per sheet at the end of the
// document, after any styles the HTML carries, so later sheets win on
// conflicting rules.
const injectStylesheets = `(function (sheets) {
	const parent = document.documentElement;
	for (const css of sheets) {
		const el = document.createElement('style');
		el.textContent = css;
		parent.appendChild(el);
	}
	return sheets.length;
})(%s)`

// renderReady forces a layout pass so web fonts start loading, then reports
// whether the document and its fonts are done.
const renderReady = `(document.body ? document.body.offsetHeight : 0,
	document.readyState === 'complete' && (!document.fonts || document.fonts.status === 'loaded'))`

// ChromeRenderer prints HTML to PDF with headless Chrome.
type ChromeRenderer struct {
	cfg  config.Config
	pool *chrome.Pool
}

// NewChromeRenderer renders in tabs of pool, or in a throwaway browser per
// request when pool is nil.
func NewChromeRenderer(cfg config.Config, pool *chrome.Pool) *ChromeRenderer {
	return &ChromeRenderer{cfg: cfg, pool: pool}
}

func (r *ChromeRenderer) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if r.pool == nil {
		return renderPDFWithChrome(ctx, req, r.cfg)
	}

	runOnce := func() ([]byte, error) {
		acquireCtx, acquireCancel := context.WithTimeout(ctx, acquireTimeout)
		defer acquireCancel()

		tab, err := r.pool.Acquire(acquireCtx)
		if err != nil {
			return nil, fmt.Errorf("acquire chrome tab: %w", err)
		}

		tabCtx, cancel := withOptionalTimeout(tab.Ctx, req.Options.Timeout)
		stop := context.AfterFunc(ctx, cancel)
		pdfBuf, renderErr := renderPDFInExistingTab(tabCtx, req)
		stop()
		cancel()

		r.pool.Release(tab, renderErr)
		return pdfBuf, renderErr
	}

	pdfBuf, err := runOnce()
	if err != nil && ctx.Err() == nil && (chrome.BrowserGone(err) || r.pool.Disconnected()) {
		logging.Warn("Chrome session lost; restarting pool and rendering again", "error", err)
		if rerr := r.pool.Restart(); rerr != nil {
			return nil, fmt.Errorf("%w (restart failed: %v)", err, rerr)
		}
		return runOnce()
	}
	return pdfBuf, err
}

// renderPDFWithChrome starts a dedicated browser for one render.
func renderPDFWithChrome(ctx context.Context, req RenderRequest, cfg config.Config) ([]byte, error) {
	tmpDir, err := chrome.CreateProfileDir(cfg, "chromedata-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chrome.AllocatorOptions(cfg, tmpDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	chromeCtx, cancelTimeout := withOptionalTimeout(chromeCtx, req.Options.Timeout)
	defer cancelTimeout()

	return renderPDFInExistingTab(chromeCtx, req)
}

// renderPDFInExistingTab loads the document into a blank tab, applies the
// stylesheets, waits for fonts and prints.
func renderPDFInExistingTab(ctx context.Context, req RenderRequest) ([]byte, error) {
	sheets := req.Stylesheets
	if sheets == nil {
		sheets = []string{}
	}
	sheetsJSON, err := json.Marshal(sheets)
	if err != nil {
		return nil, fmt.Errorf("encode stylesheets: %w", err)
	}

	opts := req.Options
	var pdfBuf []byte
	var applied int
	err = chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, req.HTML).Do(ctx)
		}),
		chromedp.Evaluate(fmt.Sprintf(injectStylesheets, sheetsJSON), &applied),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForRenderReady(ctx, readyPoll)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(opts.PrintBackground).
				WithPreferCSSPageSize(true).
				WithPaperWidth(opts.Paper.Width).
				WithPaperHeight(opts.Paper.Height).
				WithMarginTop(opts.Margin).
				WithMarginBottom(opts.Margin).
				WithMarginLeft(opts.Margin).
				WithMarginRight(opts.Margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	if applied != len(sheets) {
		return nil, fmt.Errorf("applied %d of %d stylesheets", applied, len(sheets))
	}
	return pdfBuf, nil
}

// waitForRenderReady polls until the document and its web fonts finished
// loading, or ctx ends.
func waitForRenderReady(ctx context.Context, poll time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var ready bool
		if err := chromedp.Evaluate(renderReady, &ready).Do(ctx); err != nil {
			return err
		}
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
