// Package textinput transmits arbitrary Unicode message content through
// an input surface that only reliably carries a restricted character
// range. Delivery runs through an ordered chain of strategies; each
// either delivers the entire message or signals failure, and every
// claimed success is verified by reading the rendered content back.
package textinput

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/outcome"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/retry"
)

// Surface is the input target a delivery writes into. Implementations
// wrap a live browser element; every method can fail.
type Surface interface {
	// Clear empties the surface. A prior partial write corrupts
	// subsequent attempts, so clearing precedes every strategy.
	Clear() error

	// Inject sets the surface's content representation directly and
	// triggers input notification plus a focus shift.
	Inject(text string) error

	// Paste places text on the system clipboard and issues a paste
	// gesture into the focused surface.
	Paste(text string) error

	// TypeSegment sends one line of text through native character input.
	TypeSegment(text string) error

	// LineBreak issues an explicit line-break gesture, not a literal
	// newline character.
	LineBreak() error

	// RenderedText reads back the surface's rendered content.
	RenderedText() (string, error)
}

// strategy is one rung of the fallback chain.
type strategy struct {
	name string
	run  func(s Surface, text string) error
}

// Deliverer runs the tiered delivery chain.
type Deliverer struct {
	log           *logging.Logger
	clearAttempts int
	clearDelay    time.Duration
}

// NewDeliverer creates a deliverer. logger may be nil.
func NewDeliverer(logger *logging.Logger) *Deliverer {
	return &Deliverer{
		log:           logger,
		clearAttempts: 3,
		clearDelay:    500 * time.Millisecond,
	}
}

// Deliver transmits text into the surface. Strategies are tried in order:
// direct content injection, clipboard transfer, segmented native typing.
// The first strategy whose result passes the rendered-length check wins.
// If no strategy succeeds the result is a retryable ContentRejected
// failure; fatal driver errors propagate immediately.
func (d *Deliverer) Deliver(ctx context.Context, s Surface, text string) outcome.Outcome {
	strategies := []strategy{
		{name: "direct-injection", run: deliverInject},
		{name: "clipboard", run: deliverClipboard},
		{name: "segmented-typing", run: deliverTyped},
	}

	var last outcome.Outcome
	for _, strat := range strategies {
		if err := ctx.Err(); err != nil {
			return outcome.Retryable(outcome.ClassTransientUI, err)
		}

		if o := d.clearSurface(ctx, s); !o.OK() {
			if o.IsFatal() {
				return o
			}
			last = o
			continue
		}

		if err := strat.run(s, text); err != nil {
			o := outcome.Classify(outcome.ClassContentRejected, err)
			if o.IsFatal() {
				return o
			}
			d.warnf("strategy %s failed: %v", strat.name, err)
			last = o
			continue
		}

		o := d.verify(s, text)
		if o.OK() {
			d.infof("strategy %s delivered %d runes", strat.name, len([]rune(text)))
			return o
		}
		if o.IsFatal() {
			return o
		}
		d.warnf("strategy %s failed verification: %s", strat.name, o.Reason)
		last = o
	}

	if last.Kind == outcome.KindSuccess {
		// No strategy ran at all; treat as rejected.
		last = outcome.Retryable(outcome.ClassContentRejected, errAllStrategiesFailed)
	}
	return last
}

// clearSurface empties the surface with bounded retries.
func (d *Deliverer) clearSurface(ctx context.Context, s Surface) outcome.Outcome {
	var lastErr error
	for attempt := 0; attempt < d.clearAttempts; attempt++ {
		if err := s.Clear(); err != nil {
			if outcome.IsFatalError(err) {
				return outcome.Fatal(err)
			}
			lastErr = err
			if !retry.Sleep(ctx, d.clearDelay) {
				return outcome.Retryable(outcome.ClassTransientUI, ctx.Err())
			}
			continue
		}
		return outcome.Success()
	}
	return outcome.Retryable(outcome.ClassTransientUI, lastErr)
}

// verify reads the rendered content back and compares non-whitespace
// length against the source. Success is never reported on a mismatch: a
// rendering engine may accept a write yet fail to visually commit it.
func (d *Deliverer) verify(s Surface, text string) outcome.Outcome {
	rendered, err := s.RenderedText()
	if err != nil {
		return outcome.Classify(outcome.ClassContentRejected, err)
	}

	want := visibleLength(text)
	got := visibleLength(rendered)
	if got != want {
		return outcome.Retryable(outcome.ClassContentRejected,
			&verifyError{want: want, got: got})
	}
	return outcome.Success()
}

func deliverInject(s Surface, text string) error {
	return s.Inject(text)
}

func deliverClipboard(s Surface, text string) error {
	return s.Paste(text)
}

// deliverTyped splits on line breaks and types each segment natively,
// issuing an explicit line-break gesture between segments. Slowest and
// most failure-prone for astral code points, so it runs last.
func deliverTyped(s Surface, text string) error {
	segments := strings.Split(text, "\n")
	for i, segment := range segments {
		if segment != "" {
			if err := s.TypeSegment(segment); err != nil {
				return err
			}
		}
		if i < len(segments)-1 {
			if err := s.LineBreak(); err != nil {
				return err
			}
		}
	}
	return nil
}

// visibleLength counts non-whitespace runes. Whitespace is excluded
// because rendered surfaces normalize it unpredictably.
func visibleLength(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func (d *Deliverer) infof(format string, v ...interface{}) {
	if d.log != nil {
		d.log.Infof(format, v...)
	}
}

func (d *Deliverer) warnf(format string, v ...interface{}) {
	if d.log != nil {
		d.log.Warnf(format, v...)
	}
}
