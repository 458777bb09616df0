// Package engine drives one full delivery run: it iterates recipients,
// consults the progress ledger, keeps the session healthy, pushes each
// message through the tiered delivery chain under the retry controller,
// and records every outcome durably.
package engine

import (
	"context"
	"fmt"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/browser"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/config"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/contacts"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/ledger"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/notify"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/outcome"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/retry"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/session"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/textinput"
)

// Prompter resolves changed-message dispositions when the configured
// policy is prompt. Implementations ask the operator and report whether
// the edited message should be resent.
type Prompter interface {
	ConfirmResend(r contacts.Recipient, prior ledger.Record) (bool, error)
}

// Engine orchestrates a run. Recipients are processed strictly one at a
// time: the session is a single non-reentrant resource.
type Engine struct {
	cfg       config.Config
	ledger    *ledger.Ledger
	sess      *session.Manager
	retries   *retry.Controller
	deliverer *textinput.Deliverer
	sink      notify.Sink
	prompter  Prompter
	log       *logging.Logger
}

// New wires an engine. sink may be nil (events are dropped); prompter is
// only consulted when the changed policy is prompt.
func New(
	cfg config.Config,
	led *ledger.Ledger,
	sess *session.Manager,
	retries *retry.Controller,
	deliverer *textinput.Deliverer,
	sink notify.Sink,
	prompter Prompter,
	logger *logging.Logger,
) *Engine {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Engine{
		cfg:       cfg,
		ledger:    led,
		sess:      sess,
		retries:   retries,
		deliverer: deliverer,
		sink:      sink,
		prompter:  prompter,
		log:       logger,
	}
}

// Run processes every recipient in source order and returns the run
// summary. A Terminated session or an external stop request ends the run
// early and normally: the summary reflects partial completion and the
// ledger keeps everything recorded so far.
func (e *Engine) Run(ctx context.Context, recipients []contacts.Recipient) (notify.Summary, error) {
	var summary notify.Summary
	var failures []notify.Failure

	e.sink.RunStarted(len(recipients))
	e.infof("run started: %d recipients", len(recipients))

	seen := make(map[string]bool, len(recipients))

	for i, r := range recipients {
		// Cancellation is cooperative, observed only at the recipient
		// boundary so a delivery is never abandoned mid-flight.
		if ctx.Err() != nil {
			e.infof("stop requested, ending run after %d/%d recipients", i, len(recipients))
			break
		}

		if seen[r.Key()] {
			e.warnf("duplicate number %s in source, skipping %s", r.Key(), r.Name)
			summary.Skipped++
			continue
		}
		seen[r.Key()] = true

		e.infof("processing %d/%d: %s (%s)", i+1, len(recipients), r.Name, r.Key())

		proceed, stop := e.disposition(&summary, r)
		if stop {
			break
		}
		if !proceed {
			continue
		}

		summary.Attempted++
		o, terminated := e.sendWithRecovery(ctx, r)
		if terminated {
			// Normal early-termination path: the session could not be
			// recovered. Nothing is recorded for this recipient.
			e.warnf("session terminated, ending run with partial completion")
			break
		}

		if o.OK() {
			if err := e.ledger.Record(r.Key(), ledger.OutcomeSent, r.Fingerprint, ""); err != nil {
				return summary, fmt.Errorf("ledger write failed: %w", err)
			}
			e.sess.ReportSuccess()
			summary.Sent++
			e.infof("sent to %s (%s)", r.Name, r.Key())
		} else {
			if err := e.ledger.Record(r.Key(), ledger.OutcomeFailed, r.Fingerprint, o.Reason); err != nil {
				return summary, fmt.Errorf("ledger write failed: %w", err)
			}
			e.sess.ReportFailure(o)
			e.sink.RecipientFailed(r.Key(), r.Name, o.Reason)
			summary.Failed++
			failures = append(failures, notify.Failure{Key: r.Key(), Name: r.Name, Reason: o.Reason})
		}

		if i < len(recipients)-1 && e.cfg.PacingDelay > 0 {
			if !retry.Sleep(ctx, e.cfg.PacingDelay) {
				continue
			}
		}
	}

	e.sink.RunCompleted(summary, failures)
	e.infof("run completed: attempted=%d sent=%d failed=%d skipped=%d changed=%d",
		summary.Attempted, summary.Sent, summary.Failed, summary.Skipped, summary.ChangedFlagged)
	return summary, nil
}

// disposition consults the ledger and the changed-message policy.
// Returns whether to proceed with delivery, and whether to stop the run.
func (e *Engine) disposition(summary *notify.Summary, r contacts.Recipient) (proceed, stop bool) {
	switch e.ledger.ShouldProcess(r.Key(), r.Fingerprint) {
	case ledger.SkipAlreadySent:
		e.infof("already sent to %s, skipping", r.Key())
		summary.Skipped++
		return false, false

	case ledger.FlagChanged:
		summary.ChangedFlagged++
		return e.resolveChanged(summary, r), false

	default:
		return true, false
	}
}

// resolveChanged applies the configured policy to a recipient whose
// message was edited after a successful send. Never a silent resend.
func (e *Engine) resolveChanged(summary *notify.Summary, r contacts.Recipient) bool {
	prior, _ := e.ledger.Get(r.Key())

	switch e.cfg.ChangedPolicy {
	case config.ChangedResend:
		e.warnf("message changed for %s since last send, resending per policy", r.Key())
		return true

	case config.ChangedPrompt:
		if e.prompter != nil {
			resend, err := e.prompter.ConfirmResend(r, prior)
			if err != nil {
				e.warnf("prompt failed for %s, skipping: %v", r.Key(), err)
			} else if resend {
				return true
			}
		}
		fallthrough

	default:
		e.warnf("message changed for %s since last send, skipping per policy", r.Key())
		if err := e.ledger.Record(r.Key(), ledger.OutcomeSkipped, r.Fingerprint,
			"message changed since last send"); err != nil {
			e.warnf("ledger write failed for %s: %v", r.Key(), err)
		}
		summary.Skipped++
		return false
	}
}

// sendWithRecovery delivers to one recipient. A fatal failure triggers
// session recovery and exactly one post-recovery retry; if the session
// cannot be recovered, terminated is true and the run must stop.
func (e *Engine) sendWithRecovery(ctx context.Context, r contacts.Recipient) (o outcome.Outcome, terminated bool) {
	for attempt := 0; attempt < 2; attempt++ {
		if err := e.sess.EnsureHealthy(ctx); err != nil {
			return outcome.Fatal(err), true
		}

		o = e.sendOnce(ctx, r)
		if !o.IsFatal() {
			return o, false
		}

		// The session is unusable; hand the fatal signal to the lifecycle
		// manager and let EnsureHealthy drive the restart before the one
		// post-recovery retry.
		e.warnf("fatal failure delivering to %s: %s", r.Key(), o.Reason)
		e.sess.ReportFailure(o)
	}
	return o, false
}

// sendOnce performs the full delivery sequence against the current
// session: open the conversation, run the tiered delivery chain, submit.
func (e *Engine) sendOnce(ctx context.Context, r contacts.Recipient) outcome.Outcome {
	driver := e.sess.Driver()
	box := browser.NewMessageBox(driver)
	policy := e.retryPolicy()

	if o := e.retries.Run(ctx, "open-conversation", policy, func() error {
		return browser.OpenConversation(driver, r.Phone, e.cfg.WaitTimeout)
	}); !o.OK() {
		return o
	}

	if o := e.retries.Run(ctx, "deliver-message", policy, func() error {
		d := e.deliverer.Deliver(ctx, box, r.Message)
		if d.OK() {
			return nil
		}
		if d.Err != nil {
			return d.Err
		}
		return fmt.Errorf("delivery failed: %s", d.Reason)
	}); !o.OK() {
		return o
	}

	return e.retries.Run(ctx, "submit-message", policy, func() error {
		return box.Submit()
	})
}

func (e *Engine) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       e.cfg.MaxRetries,
		BaseDelay:         e.cfg.RetryDelay,
		BackoffMultiplier: e.cfg.BackoffMultiplier,
		Classifier: func(err error) outcome.Outcome {
			return outcome.Classify(outcome.ClassTransientUI, err)
		},
	}
}

func (e *Engine) infof(format string, v ...interface{}) {
	if e.log != nil {
		e.log.Infof(format, v...)
	}
}

func (e *Engine) warnf(format string, v ...interface{}) {
	if e.log != nil {
		e.log.Warnf(format, v...)
	}
}
