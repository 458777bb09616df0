package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/browser"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/config"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/contacts"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/ledger"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/notify"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/retry"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/session"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/textinput"
)

// fakeDriver simulates WhatsApp Web closely enough to exercise the full
// delivery sequence: search focus, compose focus, clipboard, and submit.
type fakeDriver struct {
	focus   string
	search  string
	message string
	clip    string
	sent    []string
	closed  bool

	waitErr map[string]error   // persistent failures per selector
	onceErr map[string][]error // consumed one at a time per selector
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		waitErr: map[string]error{},
		onceErr: map[string][]error{},
	}
}

func (d *fakeDriver) Navigate(url string) error { return nil }

func (d *fakeDriver) WaitFor(selector string, _ time.Duration) error {
	if q := d.onceErr[selector]; len(q) > 0 {
		err := q[0]
		d.onceErr[selector] = q[1:]
		return err
	}
	return d.waitErr[selector]
}

func (d *fakeDriver) Click(selector string) error {
	switch selector {
	case browser.SelectorSearchBox:
		d.focus = "search"
	case browser.SelectorMessageBox:
		d.focus = "message"
	}
	return nil
}

func (d *fakeDriver) Fill(selector, value string) error { return nil }

func (d *fakeDriver) TypeText(text string) error {
	if d.focus == "search" {
		d.search += text
	} else {
		d.message += text
	}
	return nil
}

func (d *fakeDriver) Press(key string) error {
	switch key {
	case browser.KeyDelete:
		if d.focus == "search" {
			d.search = ""
		} else {
			d.message = ""
		}
	case browser.KeyPaste:
		d.message += d.clip
	case browser.KeyLineBreak:
		d.message += "\n"
	case browser.KeyEnter:
		if d.focus == "message" {
			d.sent = append(d.sent, d.message)
			d.message = ""
		}
	}
	return nil
}

func (d *fakeDriver) Evaluate(js string, arg interface{}) (interface{}, error) {
	if args, ok := arg.(map[string]interface{}); ok {
		if text, ok := args["text"].(string); ok {
			d.message = text
		}
	}
	return nil, nil
}

func (d *fakeDriver) InnerText(selector string) (string, error) {
	return d.message, nil
}

func (d *fakeDriver) SetClipboard(text string) error {
	d.clip = text
	return nil
}

func (d *fakeDriver) Alive() bool { return !d.closed }

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

// fakeLauncher hands out a fresh fakeDriver per Launch.
type fakeLauncher struct {
	launches int
	prepare  func(idx int, d *fakeDriver)
	drivers  []*fakeDriver
}

func (l *fakeLauncher) Launch(ctx context.Context) (browser.Driver, error) {
	d := newFakeDriver()
	if l.prepare != nil {
		l.prepare(l.launches, d)
	}
	l.launches++
	l.drivers = append(l.drivers, d)
	return d, nil
}

// recordingSink captures events for assertions.
type recordingSink struct {
	started   int
	failed    []string
	restarts  int
	completed *notify.Summary
}

func (r *recordingSink) RunStarted(total int)                     { r.started = total }
func (r *recordingSink) RecipientFailed(key, name, reason string) { r.failed = append(r.failed, key) }
func (r *recordingSink) SessionRestarted()                        { r.restarts++ }
func (r *recordingSink) RunCompleted(s notify.Summary, _ []notify.Failure) {
	r.completed = &s
}

type fakePrompter struct {
	answer bool
	asked  int
}

func (p *fakePrompter) ConfirmResend(contacts.Recipient, ledger.Record) (bool, error) {
	p.asked++
	return p.answer, nil
}

type harness struct {
	engine   *Engine
	ledger   *ledger.Ledger
	launcher *fakeLauncher
	sink     *recordingSink
	sess     *session.Manager
}

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	cfg.BackoffMultiplier = 1.0
	cfg.PacingDelay = 0
	cfg.WaitTimeout = time.Millisecond
	return cfg
}

func newHarness(t *testing.T, cfg config.Config, prompter Prompter) *harness {
	t.Helper()

	launcher := &fakeLauncher{}
	sink := &recordingSink{}

	sessCfg := session.Config{
		RefreshInterval:  time.Hour,
		FailureThreshold: 3,
		RestartAttempts:  2,
		RestartDelay:     time.Millisecond,
		HealthTimeout:    time.Millisecond,
		LoginTimeout:     time.Millisecond,
		OnRestart:        sink.SessionRestarted,
	}
	sess := session.NewManager(launcher, sessCfg, nil)

	led := ledger.New(filepath.Join(t.TempDir(), "ledger.json"), nil)
	_, err := led.Load()
	require.NoError(t, err)

	deliverer := textinput.NewDeliverer(nil)

	eng := New(cfg, led, sess, retry.NewController(nil), deliverer, sink, prompter, nil)
	return &harness{engine: eng, ledger: led, launcher: launcher, sink: sink, sess: sess}
}

func recipient(name, phone, message string) contacts.Recipient {
	return contacts.Recipient{
		Name:        name,
		Phone:       phone,
		Message:     message,
		Fingerprint: contacts.Fingerprint(name, phone, message),
	}
}

func TestRun_DeliversAllRecipients(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)

	rs := []contacts.Recipient{
		recipient("Alice", "+15551110001", "hello alice"),
		recipient("Bob", "+15551110002", "hello\nbob"),
		recipient("Cara", "+15551110003", "hi ✨"),
	}

	summary, err := h.engine.Run(context.Background(), rs)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Sent)
	assert.Zero(t, summary.Failed)

	d := h.launcher.drivers[0]
	require.Len(t, d.sent, 3)
	assert.Equal(t, "hello alice", d.sent[0])

	for _, r := range rs {
		rec, ok := h.ledger.Get(r.Key())
		require.True(t, ok)
		assert.Equal(t, ledger.OutcomeSent, rec.Outcome)
		assert.Equal(t, r.Fingerprint, rec.Fingerprint)
	}

	assert.Equal(t, 3, h.sink.started)
	require.NotNil(t, h.sink.completed)
	assert.Equal(t, 3, h.sink.completed.Sent)
}

func TestRun_SkipsAlreadySent(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)

	r := recipient("Alice", "+15551110001", "hello")
	require.NoError(t, h.ledger.Record(r.Key(), ledger.OutcomeSent, r.Fingerprint, ""))

	summary, err := h.engine.Run(context.Background(), []contacts.Recipient{r})
	require.NoError(t, err)

	// Idempotence: zero delivery attempts, not even a session launch.
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Attempted)
	assert.Zero(t, h.launcher.launches)
}

func TestRun_ChangedMessageSkippedByDefault(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)

	r := recipient("Alice", "+15551110001", "edited message")
	require.NoError(t, h.ledger.Record(r.Key(), ledger.OutcomeSent, "old-fingerprint", ""))

	summary, err := h.engine.Run(context.Background(), []contacts.Recipient{r})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ChangedFlagged)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Sent)

	rec, _ := h.ledger.Get(r.Key())
	assert.Equal(t, ledger.OutcomeSkipped, rec.Outcome)
	assert.Contains(t, rec.Reason, "changed")
}

func TestRun_ChangedMessageResendPolicy(t *testing.T) {
	cfg := fastConfig()
	cfg.ChangedPolicy = config.ChangedResend
	h := newHarness(t, cfg, nil)

	r := recipient("Alice", "+15551110001", "edited message")
	require.NoError(t, h.ledger.Record(r.Key(), ledger.OutcomeSent, "old-fingerprint", ""))

	summary, err := h.engine.Run(context.Background(), []contacts.Recipient{r})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ChangedFlagged)
	assert.Equal(t, 1, summary.Sent)

	rec, _ := h.ledger.Get(r.Key())
	assert.Equal(t, ledger.OutcomeSent, rec.Outcome)
	assert.Equal(t, r.Fingerprint, rec.Fingerprint)
}

func TestRun_ChangedMessagePromptPolicy(t *testing.T) {
	tests := []struct {
		name     string
		answer   bool
		wantSent int
	}{
		{name: "operator approves resend", answer: true, wantSent: 1},
		{name: "operator declines", answer: false, wantSent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig()
			cfg.ChangedPolicy = config.ChangedPrompt
			prompter := &fakePrompter{answer: tt.answer}
			h := newHarness(t, cfg, prompter)

			r := recipient("Alice", "+15551110001", "edited")
			require.NoError(t, h.ledger.Record(r.Key(), ledger.OutcomeSent, "old-fp", ""))

			summary, err := h.engine.Run(context.Background(), []contacts.Recipient{r})
			require.NoError(t, err)

			assert.Equal(t, 1, prompter.asked)
			assert.Equal(t, tt.wantSent, summary.Sent)
		})
	}
}

func TestRun_PerRecipientFailureContinuesRun(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)
	h.launcher.prepare = func(idx int, d *fakeDriver) {
		// The search box never appears for anyone, but the failure is
		// transient, so each recipient exhausts retries independently.
		d.waitErr[browser.SelectorSearchBox] = errors.New("element not visible")
	}

	rs := []contacts.Recipient{
		recipient("Alice", "+15551110001", "a"),
		recipient("Bob", "+15551110002", "b"),
	}

	summary, err := h.engine.Run(context.Background(), rs)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, []string{"+15551110001", "+15551110002"}, h.sink.failed)

	rec, _ := h.ledger.Get("+15551110001")
	assert.Equal(t, ledger.OutcomeFailed, rec.Outcome)
	assert.NotEmpty(t, rec.Reason)
}

func TestRun_FatalFailureRecoversAndRetriesOnce(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)
	h.launcher.prepare = func(idx int, d *fakeDriver) {
		if idx == 0 {
			// First session dies on the first conversation open.
			d.onceErr[browser.SelectorSearchBox] = []error{errors.New("invalid session id")}
		}
	}

	r := recipient("Alice", "+15551110001", "hello")
	summary, err := h.engine.Run(context.Background(), []contacts.Recipient{r})
	require.NoError(t, err)

	// The session restarted and the recipient was retried exactly once
	// post-recovery, then recorded sent.
	assert.Equal(t, 2, h.launcher.launches)
	assert.Equal(t, 1, h.sink.restarts)
	assert.Equal(t, 1, summary.Sent)
	assert.True(t, h.launcher.drivers[0].closed)
	assert.Equal(t, []string{"hello"}, h.launcher.drivers[1].sent)

	rec, _ := h.ledger.Get(r.Key())
	assert.Equal(t, ledger.OutcomeSent, rec.Outcome)
}

func TestRun_TerminatedSessionEndsRunNormally(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)
	h.launcher.prepare = func(idx int, d *fakeDriver) {
		// Every session, original and restarted, is dead on arrival.
		d.waitErr[browser.SelectorNewChatButton] = errors.New("invalid session id")
		d.waitErr[browser.SelectorSearchBox] = errors.New("invalid session id")
	}

	rs := []contacts.Recipient{
		recipient("Alice", "+15551110001", "a"),
		recipient("Bob", "+15551110002", "b"),
	}

	summary, err := h.engine.Run(context.Background(), rs)

	// Termination is a normal exit with partial completion, not an error.
	require.NoError(t, err)
	assert.Zero(t, summary.Sent)
	require.NotNil(t, h.sink.completed)

	// Nothing recorded for the recipient in flight when the session died.
	_, ok := h.ledger.Get("+15551110001")
	assert.False(t, ok)
}

func TestRun_DuplicateNumberSkipped(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)

	rs := []contacts.Recipient{
		recipient("Alice", "+15551110001", "first"),
		recipient("Alice again", "+15551110001", "second"),
	}

	summary, err := h.engine.Run(context.Background(), rs)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"first"}, h.launcher.drivers[0].sent)
}

func TestRun_CancellationStopsAtRecipientBoundary(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rs := []contacts.Recipient{recipient("Alice", "+15551110001", "a")}

	summary, err := h.engine.Run(ctx, rs)
	require.NoError(t, err)
	assert.Zero(t, summary.Attempted)
	require.NotNil(t, h.sink.completed)
}

func TestRun_SubsequentRunIsIdempotent(t *testing.T) {
	h := newHarness(t, fastConfig(), nil)

	rs := []contacts.Recipient{
		recipient("Alice", "+15551110001", "hello"),
		recipient("Bob", "+15551110002", "hi"),
	}

	_, err := h.engine.Run(context.Background(), rs)
	require.NoError(t, err)

	// Second run over the same ledger: zero delivery attempts.
	h2 := newHarness(t, fastConfig(), nil)
	h2.engine.ledger = h.ledger

	summary, err := h2.engine.Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Zero(t, summary.Attempted)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, h2.launcher.launches)
}
