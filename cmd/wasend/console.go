package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/contacts"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/ledger"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/notify"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// consoleSink mirrors run events to the operator's terminal.
type consoleSink struct {
	w io.Writer
}

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{w: w}
}

func (c *consoleSink) RunStarted(total int) {
	fmt.Fprintln(c.w, headerStyle.Render(fmt.Sprintf("Starting delivery run: %d recipients", total)))
}

func (c *consoleSink) RecipientFailed(key, name, reason string) {
	fmt.Fprintf(c.w, "%s %s (%s): %s\n", failStyle.Render("✗"), name, key, reason)
}

func (c *consoleSink) SessionRestarted() {
	fmt.Fprintln(c.w, warnStyle.Render("Session restarted"))
}

func (c *consoleSink) RunCompleted(summary notify.Summary, failures []notify.Failure) {
	// printSummary renders the final report; here only the failures are
	// listed as they accumulate context worth scrolling back for.
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(c.w, dimStyle.Render(fmt.Sprintf("%d recipients failed, see summary below", len(failures))))
}

// printSummary renders the end-of-run report.
func printSummary(w io.Writer, summary notify.Summary) {
	rule := dimStyle.Render(strings.Repeat("─", 40))

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, headerStyle.Render("Delivery summary"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Attempted:  %d\n", summary.Attempted)
	fmt.Fprintf(w, "  %s %d\n", okStyle.Render("Sent:      "), summary.Sent)
	fmt.Fprintf(w, "  %s %d\n", failStyle.Render("Failed:    "), summary.Failed)
	fmt.Fprintf(w, "  Skipped:    %d\n", summary.Skipped)
	fmt.Fprintf(w, "  %s %d\n", warnStyle.Render("Changed:   "), summary.ChangedFlagged)
	fmt.Fprintln(w, rule)
}

// stdinPrompter asks the operator whether to resend an edited message.
type stdinPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newStdinPrompter(in io.Reader, out io.Writer) *stdinPrompter {
	return &stdinPrompter{in: bufio.NewReader(in), out: out}
}

// ConfirmResend asks once per flagged recipient. Anything other than an
// explicit yes means skip.
func (p *stdinPrompter) ConfirmResend(r contacts.Recipient, prior ledger.Record) (bool, error) {
	fmt.Fprintf(p.out, "%s\n", warnStyle.Render(
		fmt.Sprintf("Message for %s (%s) changed since it was sent on %s.",
			r.Name, r.Key(), prior.Timestamp.Format("2006-01-02 15:04"))))
	fmt.Fprint(p.out, "Resend with the new content? [y/N]: ")

	line, err := p.in.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
