package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/playwright-community/playwright-go"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
)

// LaunchOptions configures the Playwright launcher.
type LaunchOptions struct {
	// UserDataDir is the persistent browser profile directory. Reusing it
	// across restarts keeps the WhatsApp Web login alive.
	UserDataDir string

	// Headless controls whether the browser runs without a visible window.
	// WhatsApp Web login via QR code needs a visible window, so this is
	// normally false.
	Headless bool

	// DefaultTimeout is applied to every page operation.
	DefaultTimeout time.Duration
}

// PlaywrightLauncher creates Chromium sessions through Playwright. One
// launcher serves the whole run; each Launch call produces an independent
// session against the same persistent profile.
type PlaywrightLauncher struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	opts        LaunchOptions
	log         *logging.Logger
	initialized bool
}

// NewPlaywrightLauncher creates a launcher. Playwright itself is not
// started until the first Launch.
func NewPlaywrightLauncher(opts LaunchOptions, logger *logging.Logger) *PlaywrightLauncher {
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = DefaultWaitTimeout
	}
	return &PlaywrightLauncher{opts: opts, log: logger}
}

// initialize installs and starts Playwright once. Output is discarded so
// driver installation noise never reaches the operator console.
func (l *PlaywrightLauncher) initialize() error {
	if l.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.pw = pw
	l.initialized = true
	return nil
}

// Launch starts a Chromium session against the persistent profile and
// returns a Driver bound to its page.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.initialize(); err != nil {
		return nil, err
	}

	browserCtx, err := l.pw.Chromium.LaunchPersistentContext(
		l.opts.UserDataDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(l.opts.Headless),
			Viewport: &playwright.Size{Width: 1280, Height: 900},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	var page playwright.Page
	if pages := browserCtx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = browserCtx.NewPage()
		if err != nil {
			browserCtx.Close()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
	}

	page.SetDefaultTimeout(float64(l.opts.DefaultTimeout.Milliseconds()))

	if l.log != nil {
		l.log.Infof("launched browser session (headless=%v, profile=%s)",
			l.opts.Headless, l.opts.UserDataDir)
	}

	return &playwrightDriver{
		context: browserCtx,
		page:    page,
	}, nil
}

// Shutdown stops the shared Playwright instance. Call after the last
// session has been closed.
func (l *PlaywrightLauncher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	l.initialized = false
	return nil
}

// playwrightDriver implements Driver over one persistent-context session.
type playwrightDriver struct {
	context playwright.BrowserContext
	page    playwright.Page
}

func (d *playwrightDriver) Navigate(url string) error {
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (d *playwrightDriver) WaitFor(selector string, timeout time.Duration) error {
	state := playwright.WaitForSelectorState("visible")
	_, err := d.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   &state,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

func (d *playwrightDriver) Click(selector string) error {
	if err := d.page.Click(selector); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

func (d *playwrightDriver) Fill(selector, value string) error {
	if err := d.page.Fill(selector, value); err != nil {
		return fmt.Errorf("fill on %q failed: %w", selector, err)
	}
	return nil
}

func (d *playwrightDriver) TypeText(text string) error {
	if err := d.page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

func (d *playwrightDriver) Press(key string) error {
	if err := d.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press %q failed: %w", key, err)
	}
	return nil
}

func (d *playwrightDriver) Evaluate(js string, arg interface{}) (interface{}, error) {
	result, err := d.page.Evaluate(js, arg)
	if err != nil {
		return nil, fmt.Errorf("javascript execution failed: %w", err)
	}
	return result, nil
}

func (d *playwrightDriver) InnerText(selector string) (string, error) {
	text, err := d.page.InnerText(selector)
	if err != nil {
		return "", fmt.Errorf("inner text of %q failed: %w", selector, err)
	}
	return text, nil
}

func (d *playwrightDriver) SetClipboard(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	return nil
}

func (d *playwrightDriver) Alive() bool {
	if d.page.IsClosed() {
		return false
	}
	// A closed page is not the only death mode: confirm the transport
	// still answers.
	if _, err := d.page.Evaluate("1 + 1", nil); err != nil {
		return false
	}
	return true
}

func (d *playwrightDriver) Close() error {
	// Ignore page close errors, continue cleanup
	_ = d.page.Close()
	if err := d.context.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}
