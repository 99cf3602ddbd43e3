// Package browser drives a shared headless Chrome session for the providers
// that need rendered pages. One allocator and browser process serve all
// providers and users; every scrape runs in its own transient tab that is
// released on success and failure alike.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"flatwatch/internal/domain"
	"flatwatch/internal/extract"
	"flatwatch/internal/ports"
)

const (
	defaultNavTimeout  = 45 * time.Second
	defaultWaitTimeout = 8 * time.Second

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options configures the shared session.
type Options struct {
	Headless    bool
	ExecPath    string
	NavTimeout  time.Duration
	WaitTimeout time.Duration
}

// Service implements ports.BrowserService on top of chromedp.
type Service struct {
	opts   Options
	logger *slog.Logger

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

var _ ports.BrowserService = (*Service)(nil)

// NewService prepares the session; the browser process starts on Initialize.
func NewService(opts Options, logger *slog.Logger) *Service {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = defaultNavTimeout
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	return &Service{opts: opts, logger: logger}
}

// Initialize launches the shared browser process.
func (s *Service) Initialize(ctx context.Context) error {
	execPath := s.opts.ExecPath
	if execPath == "" {
		execPath = findChromeBinary()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the process now so the first scrape does not pay the launch cost.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("launch browser: %w", err)
	}

	s.browserCtx = browserCtx
	s.cancelBrowser = cancelBrowser
	s.cancelAlloc = cancelAlloc

	if s.logger != nil {
		s.logger.Info("browser session ready", "headless", s.opts.Headless, "exec_path", execPath)
	}
	return nil
}

// Scrape renders the page in a fresh tab and evaluates the field map against
// the resulting document.
func (s *Service) Scrape(ctx context.Context, pageURL, containerSelector string, fields map[string]extract.Expr, waitSelector string) ([]domain.RawListing, error) {
	html, err := s.renderPage(ctx, pageURL, waitSelector)
	if err != nil {
		return nil, err
	}
	return extract.Fields(html, containerSelector, fields)
}

// Evaluate renders the page in a fresh tab and runs the script, returning its
// JSON-serialized result.
func (s *Service) Evaluate(ctx context.Context, pageURL, script, waitSelector string) (json.RawMessage, error) {
	if s.browserCtx == nil {
		return nil, fmt.Errorf("browser session not initialized")
	}

	tabCtx, release, err := s.openTab(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(pageURL)); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	s.softWait(tabCtx, waitSelector)

	var result json.RawMessage
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(script, &result)); err != nil {
		return nil, fmt.Errorf("evaluate script at %s: %w", pageURL, err)
	}
	return result, nil
}

// Close tears down the shared session. It is called during shutdown only
// after in-flight scrapes are expected to have settled; tabs opened by those
// scrapes die with the browser either way.
func (s *Service) Close(context.Context) error {
	if s.cancelBrowser != nil {
		s.cancelBrowser()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	s.browserCtx = nil
	return nil
}

func (s *Service) renderPage(ctx context.Context, pageURL, waitSelector string) (string, error) {
	if s.browserCtx == nil {
		return "", fmt.Errorf("browser session not initialized")
	}

	tabCtx, release, err := s.openTab(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(pageURL)); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	s.softWait(tabCtx, waitSelector)

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document at %s: %w", pageURL, err)
	}
	return html, nil
}

// openTab creates a transient tab bound to both the shared session and the
// caller's context. The returned release func must run on every path.
func (s *Service) openTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.opts.NavTimeout)

	release := func() {
		cancelTimeout()
		cancelTab()
	}
	return tabCtx, release, nil
}

// softWait gives the wait selector a bounded chance to appear and proceeds
// regardless: a slow widget must not fail the scrape, the extraction step
// decides whether the page was usable.
func (s *Service) softWait(tabCtx context.Context, waitSelector string) {
	if waitSelector == "" {
		return
	}
	waitCtx, cancel := context.WithTimeout(tabCtx, s.opts.WaitTimeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(waitSelector, chromedp.ByQuery)); err != nil && s.logger != nil {
		s.logger.Debug("wait selector did not appear", "selector", waitSelector, "error", err)
	}
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
