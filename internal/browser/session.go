// Package browser models the automation session as a narrow capability
// contract so the orchestration, recovery and geocoding logic can be tested
// against an in-memory fake with no real browser involved.
package browser

import "context"

// Session is the capability contract the crawler depends on. The widget's
// script content stays an opaque detail of the caller; the session only
// navigates, evaluates scripts and reports basic page state.
type Session interface {
	// Navigate loads the given URL.
	Navigate(url string) error
	// RunScript evaluates a script in the page and unmarshals its JSON
	// result into out. A nil out discards the result.
	RunScript(script string, out any) error
	// CurrentURL returns the current page URL.
	CurrentURL() (string, error)
	// Title returns the current page title.
	Title() (string, error)
	// Quit tears the session down. Safe to call more than once.
	Quit() error
}

// Launcher produces fresh sessions; the recovery path uses it to replace a
// crashed one.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
