package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures the Chrome process backing a session.
type Options struct {
	Headless  bool
	UserAgent string
	// Startup flags beyond the fixed set, as "name" or "name=value".
	ExtraFlags map[string]any
	// Per-operation ceiling applied to every navigate/evaluate call.
	OpTimeout time.Duration
}

// fixedFlags mirror the startup flags the target widget tolerates.
func fixedFlags(opts Options) []chromedp.ExecAllocatorOption {
	flags := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("window-size", "1200,800"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
	}
	if opts.Headless {
		flags = append(flags, chromedp.Headless)
	}
	if opts.UserAgent != "" {
		flags = append(flags, chromedp.UserAgent(opts.UserAgent))
	}
	for name, value := range opts.ExtraFlags {
		flags = append(flags, chromedp.Flag(name, value))
	}
	return flags
}

// ChromeSession drives a real Chrome instance through the DevTools protocol.
type ChromeSession struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	opTimeout   time.Duration
}

// ChromeLauncher launches Chrome sessions with a fixed option set.
type ChromeLauncher struct {
	Opts Options
}

// Launch starts a Chrome process and waits until it answers.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, fixedFlags(l.Opts)...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Forces the browser process to start now rather than on first use.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	timeout := l.Opts.OpTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ChromeSession{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		opTimeout:   timeout,
	}, nil
}

func (s *ChromeSession) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.opTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// Navigate loads the given URL.
func (s *ChromeSession) Navigate(url string) error {
	if err := s.run(chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// RunScript evaluates script in the page and decodes its JSON result into
// out. A nil out discards the result.
func (s *ChromeSession) RunScript(script string, out any) error {
	if out == nil {
		out = &json.RawMessage{}
	}
	if err := s.run(chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}

// CurrentURL returns the current page URL.
func (s *ChromeSession) CurrentURL() (string, error) {
	var url string
	if err := s.run(chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("current url: %w", err)
	}
	return url, nil
}

// Title returns the current page title.
func (s *ChromeSession) Title() (string, error) {
	var title string
	if err := s.run(chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("title: %w", err)
	}
	return title, nil
}

// Quit closes the browser. Safe to call more than once.
func (s *ChromeSession) Quit() error {
	if s.cancelCtx != nil {
		s.cancelCtx()
		s.cancelCtx = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
	return nil
}
