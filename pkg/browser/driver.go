// Package browser provides the automation driver capability the delivery
// engine runs against. The engine depends only on the Driver and Launcher
// interfaces, never on a specific driver implementation; the Playwright
// implementation lives alongside them.
package browser

import (
	"context"
	"time"
)

// Driver is the capability set a live browser session exposes. Every
// method can fail at any time: the session behind it is a long-lived,
// unreliable external process.
type Driver interface {
	// Navigate loads the given URL in the session's page.
	Navigate(url string) error

	// WaitFor blocks until an element matching selector is visible or the
	// timeout elapses.
	WaitFor(selector string, timeout time.Duration) error

	// Click clicks the first element matching selector.
	Click(selector string) error

	// Fill sets the value of the element matching selector directly.
	Fill(selector, value string) error

	// TypeText sends text to the focused element through native character
	// input.
	TypeText(text string) error

	// Press sends a key chord (e.g. "Enter", "Shift+Enter", "Control+v")
	// to the focused element.
	Press(key string) error

	// Evaluate runs JavaScript in the page and returns its result.
	Evaluate(js string, arg interface{}) (interface{}, error)

	// InnerText returns the rendered text content of the element matching
	// selector.
	InnerText(selector string) (string, error)

	// SetClipboard places text on the system clipboard.
	SetClipboard(text string) error

	// Alive reports whether the underlying session still responds.
	Alive() bool

	// Close releases the session's resources.
	Close() error
}

// Launcher creates fresh driver sessions. The session lifecycle manager
// uses it for both the initial start and every restart.
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
}
