// Package crawl drives the merchant map widget: a recoverable executor for
// session operations, a widget driver around the in-page scripts, and the
// region traversal engine that ties extraction, geocoding and persistence
// together.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coumap/crawler/internal/browser"
	"github.com/coumap/crawler/internal/metrics"
)

// sessionFatalMarkers identify errors after which the browser session is
// unusable. Matched by substring against the lower-cased error text.
var sessionFatalMarkers = []string{
	"invalid session",
	"session not created",
	"chrome not reachable",
	"connection refused",
	"no such window",
	"disconnected",
	"target window already closed",
	"chrome has crashed",
	"session deleted because of page crash",
}

// IsSessionFatal reports whether err means the session is dead and a new one
// must be acquired. Any other error is not worth retrying.
func IsSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range sessionFatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ExecutorConfig configures the recoverable executor.
type ExecutorConfig struct {
	// MaxAttempts bounds how often an operation runs, recovery included.
	// Default 2: one retry after one recovery.
	MaxAttempts int
	// RecoveryEnabled false bypasses classification and recovery entirely;
	// operations run once and any failure surfaces immediately.
	RecoveryEnabled bool
	// RecoveryPause is the settle time between quitting a dead session and
	// launching a new one.
	RecoveryPause time.Duration
	// EntryURL is where a recovered session navigates back to.
	EntryURL string
}

// Executor runs session operations with bounded session recovery. It owns the
// current session: recovery swaps it out underneath the callers, which only
// ever see the session passed into their operation.
type Executor struct {
	session    browser.Session
	launcher   browser.Launcher
	cfg        ExecutorConfig
	recoveries int
	log        *slog.Logger
}

// NewExecutor wraps a live session. launcher may be nil when recovery is
// disabled.
func NewExecutor(session browser.Session, launcher browser.Launcher, cfg ExecutorConfig, log *slog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RecoveryPause <= 0 {
		cfg.RecoveryPause = 2 * time.Second
	}
	return &Executor{session: session, launcher: launcher, cfg: cfg, log: log}
}

// Session returns the current session. Valid until the next Execute call,
// which may replace it through recovery.
func (e *Executor) Session() browser.Session {
	return e.session
}

// Recoveries returns how many session recoveries have been attempted.
func (e *Executor) Recoveries() int {
	return e.recoveries
}

// Close quits the current session.
func (e *Executor) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Quit()
}

// Execute runs op against the current session. A session-fatal failure with
// budget remaining triggers recovery and one re-run; any other failure
// propagates immediately.
func (e *Executor) Execute(ctx context.Context, desc string, op func(s browser.Session) error) error {
	if !e.cfg.RecoveryEnabled {
		return op(e.session)
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 1 {
			e.log.Info("retrying after session recovery", "op", desc, "attempt", attempt)
		}

		err := op(e.session)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsSessionFatal(err) {
			return err
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		e.log.Warn("session-fatal error, attempting recovery", "op", desc, "error", err)
		if rerr := e.recover(ctx); rerr != nil {
			e.log.Error("session recovery failed", "op", desc, "error", rerr)
			return fmt.Errorf("%s: %w", desc, lastErr)
		}
	}
	return fmt.Errorf("%s: %w", desc, lastErr)
}

// ExecuteValue is the result-carrying variant of Executor.Execute.
func ExecuteValue[T any](ctx context.Context, e *Executor, desc string, op func(s browser.Session) (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, desc, func(s browser.Session) error {
		v, err := op(s)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// recover replaces the dead session: quit, pause, launch a fresh one,
// navigate back to the entry URL and probe it.
func (e *Executor) recover(ctx context.Context) error {
	e.recoveries++
	metrics.SessionRecoveries.Inc()

	if e.launcher == nil {
		return fmt.Errorf("no launcher configured")
	}

	if e.session != nil {
		// The session is already broken; a quit failure is expected.
		_ = e.session.Quit()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.RecoveryPause):
	}

	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch replacement session: %w", err)
	}
	if err := session.Navigate(e.cfg.EntryURL); err != nil {
		_ = session.Quit()
		return fmt.Errorf("navigate entry url: %w", err)
	}
	if err := probe(session); err != nil {
		_ = session.Quit()
		return fmt.Errorf("liveness probe: %w", err)
	}

	e.session = session
	e.log.Info("session recovered", "recoveries", e.recoveries)
	return nil
}

// probe checks the replacement session actually answers.
func probe(s browser.Session) error {
	if _, err := s.CurrentURL(); err != nil {
		return err
	}
	if _, err := s.Title(); err != nil {
		return err
	}
	var state string
	if err := s.RunScript("document.readyState", &state); err != nil {
		return err
	}
	return nil
}
