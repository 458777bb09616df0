// Package notify carries discrete run events to an external collaborator
// that surfaces them to the operator (console, desktop notification, or
// anything else implementing Sink).
package notify

import (
	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
)

// Summary is the end-of-run accounting.
type Summary struct {
	Attempted      int
	Sent           int
	Failed         int
	Skipped        int
	ChangedFlagged int
}

// Failure names one recipient that could not be delivered to.
type Failure struct {
	Key    string
	Name   string
	Reason string
}

// Sink receives run events. Implementations must not block the delivery
// loop.
type Sink interface {
	RunStarted(total int)
	RecipientFailed(key, name, reason string)
	SessionRestarted()
	RunCompleted(summary Summary, failures []Failure)
}

// LogSink writes every event to the run log.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates a sink backed by the given logger.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) RunStarted(total int) {
	s.log.Infof("run started: %d recipients", total)
}

func (s *LogSink) RecipientFailed(key, name, reason string) {
	s.log.Errorf("delivery failed for %s (%s): %s", name, key, reason)
}

func (s *LogSink) SessionRestarted() {
	s.log.Warnf("session restarted")
}

func (s *LogSink) RunCompleted(summary Summary, failures []Failure) {
	s.log.Infof("run completed: attempted=%d sent=%d failed=%d skipped=%d changed=%d",
		summary.Attempted, summary.Sent, summary.Failed, summary.Skipped, summary.ChangedFlagged)
	for _, f := range failures {
		s.log.Infof("failed: %s (%s): %s", f.Name, f.Key, f.Reason)
	}
}

// MultiSink fans every event out to each wrapped sink.
type MultiSink []Sink

func (m MultiSink) RunStarted(total int) {
	for _, s := range m {
		s.RunStarted(total)
	}
}

func (m MultiSink) RecipientFailed(key, name, reason string) {
	for _, s := range m {
		s.RecipientFailed(key, name, reason)
	}
}

func (m MultiSink) SessionRestarted() {
	for _, s := range m {
		s.SessionRestarted()
	}
}

func (m MultiSink) RunCompleted(summary Summary, failures []Failure) {
	for _, s := range m {
		s.RunCompleted(summary, failures)
	}
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RunStarted(int)                         {}
func (NopSink) RecipientFailed(string, string, string) {}
func (NopSink) SessionRestarted()                      {}
func (NopSink) RunCompleted(Summary, []Failure)        {}
