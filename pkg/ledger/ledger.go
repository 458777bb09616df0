// Package ledger persists per-recipient delivery outcomes across runs.
// Every record is flushed durably before Record returns, so a crash at
// any point loses at most the in-flight delivery. Writes go to a temp
// file followed by an atomic rename; readers never observe a half-written
// state.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
)

// Outcome is the persisted delivery status of one recipient.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Decision is the answer to "should this recipient be processed".
type Decision int

const (
	// Send means no sent record exists for this recipient.
	Send Decision = iota

	// SkipAlreadySent means a sent record exists with a matching fingerprint.
	SkipAlreadySent

	// FlagChanged means a sent record exists but the fingerprint differs:
	// the message was edited upstream and the configured disposition applies.
	FlagChanged
)

func (d Decision) String() string {
	switch d {
	case Send:
		return "send"
	case SkipAlreadySent:
		return "skip_already_sent"
	case FlagChanged:
		return "flag_changed"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Record is one persisted delivery outcome.
type Record struct {
	Key         string    `json:"key"`
	Fingerprint string    `json:"fingerprint"`
	Outcome     Outcome   `json:"outcome"`
	Timestamp   time.Time `json:"timestamp"`
	Reason      string    `json:"reason,omitempty"`
}

// ErrCorrupt is returned by Load when the stored ledger cannot be parsed.
// The caller must back up the corrupt file (see BackupCorrupt) and fall
// back to an empty ledger, never silently discard it.
var ErrCorrupt = errors.New("ledger file is corrupt")

// fileFormat is the on-disk shape: versioned so future migrations can
// detect older files.
type fileFormat struct {
	Version int               `json:"version"`
	Records map[string]Record `json:"records"`
}

const currentVersion = 1

// Ledger owns the durable store for one run. Exactly one instance exists
// per run.
type Ledger struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
	log     *logging.Logger
}

// New creates a ledger backed by the file at path. The file is not read
// until Load is called.
func New(path string, logger *logging.Logger) *Ledger {
	return &Ledger{
		path:    path,
		records: make(map[string]Record),
		log:     logger,
	}
}

// Path returns the durable store location.
func (l *Ledger) Path() string { return l.path }

// Load restores state from the durable store. A missing file yields an
// empty ledger. An unparseable file yields ErrCorrupt with the in-memory
// state left empty.
func (l *Ledger) Load() (map[string]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.records = make(map[string]Record)
			return l.snapshot(), nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		l.records = make(map[string]Record)
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if parsed.Records == nil {
		parsed.Records = make(map[string]Record)
	}

	l.records = parsed.Records
	if l.log != nil {
		l.log.Infof("loaded ledger with %d records from %s", len(l.records), l.path)
	}
	return l.snapshot(), nil
}

// ShouldProcess decides the disposition for a recipient identified by key
// with the given content fingerprint.
func (l *Ledger) ShouldProcess(key, fingerprint string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || rec.Outcome != OutcomeSent {
		return Send
	}
	if rec.Fingerprint == fingerprint {
		return SkipAlreadySent
	}
	return FlagChanged
}

// Get returns the stored record for key, if any.
func (l *Ledger) Get(key string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	return rec, ok
}

// Record upserts the entry for key and flushes the whole ledger durably
// before returning. A crash during the call leaves the prior file intact;
// a crash immediately after leaves the new state on disk.
func (l *Ledger) Record(key string, out Outcome, fingerprint, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[key] = Record{
		Key:         key,
		Fingerprint: fingerprint,
		Outcome:     out,
		Timestamp:   time.Now().UTC(),
		Reason:      reason,
	}

	if err := l.flushLocked(); err != nil {
		return fmt.Errorf("failed to persist ledger record for %s: %w", key, err)
	}
	return nil
}

// flushLocked writes the current state to a temp file in the same
// directory, fsyncs it, and renames it over the ledger path.
func (l *Ledger) flushLocked() error {
	payload, err := json.MarshalIndent(fileFormat{
		Version: currentVersion,
		Records: l.records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp ledger file: %w", err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

// BackupBeforeReset copies the current durable state to a timestamped
// archive next to the ledger file, enabling manual recovery before any
// destructive reset. Returns the archive path, or empty if there is no
// ledger file yet.
func (l *Ledger) BackupBeforeReset() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backupLocked("backup")
}

// BackupCorrupt archives an unparseable ledger file so the corrupt data
// is never silently discarded. Call after Load returns ErrCorrupt.
func (l *Ledger) BackupCorrupt() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	archive, err := l.backupLocked("corrupt")
	if err != nil {
		return "", err
	}
	if archive != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return archive, fmt.Errorf("failed to remove corrupt ledger: %w", err)
		}
		if l.log != nil {
			l.log.Warnf("archived corrupt ledger to %s", archive)
		}
	}
	return archive, nil
}

func (l *Ledger) backupLocked(label string) (string, error) {
	src, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open ledger for backup: %w", err)
	}
	defer src.Close()

	stamp := time.Now().UTC().Format("20060102-150405")
	archive := fmt.Sprintf("%s.%s-%s", l.path, label, stamp)

	dst, err := os.Create(archive)
	if err != nil {
		return "", fmt.Errorf("failed to create ledger backup: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy ledger backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync ledger backup: %w", err)
	}
	return archive, nil
}

// Reset archives the current file and starts over with an empty ledger.
func (l *Ledger) Reset() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	archive, err := l.backupLocked("backup")
	if err != nil {
		return "", err
	}

	l.records = make(map[string]Record)
	if err := l.flushLocked(); err != nil {
		return archive, err
	}
	return archive, nil
}

func (l *Ledger) snapshot() map[string]Record {
	out := make(map[string]Record, len(l.records))
	for k, v := range l.records {
		out[k] = v
	}
	return out
}
