// Package config holds the run configuration: a YAML file merged over
// defaults, validated before the run starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ChangedPolicy decides what happens when a recipient's stored sent
// record has a different fingerprint than the current source data.
type ChangedPolicy string

const (
	// ChangedSkip records the recipient as skipped. The default: an
	// edited message is never silently resent.
	ChangedSkip ChangedPolicy = "skip"

	// ChangedResend delivers the edited message.
	ChangedResend ChangedPolicy = "resend"

	// ChangedPrompt asks the operator once per flagged recipient.
	ChangedPrompt ChangedPolicy = "prompt"
)

// Config is the full run configuration.
type Config struct {
	// ContactsPath is the recipient CSV file.
	ContactsPath string `yaml:"contacts_path"`

	// LedgerPath is the durable progress file.
	LedgerPath string `yaml:"ledger_path"`

	// UserDataDir is the persistent browser profile directory.
	UserDataDir string `yaml:"user_data_dir"`

	// Headless runs the browser without a window. QR login needs a
	// visible window, so this only works with an already-authenticated
	// profile.
	Headless bool `yaml:"headless"`

	// WaitTimeout bounds individual element waits.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// LoginTimeout bounds the wait for WhatsApp Web authentication.
	LoginTimeout time.Duration `yaml:"login_timeout"`

	// MaxRetries is the per-operation attempt budget.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay between attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// RefreshInterval drives proactive session refresh.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// FailureThreshold is the consecutive-failure count that degrades the
	// session.
	FailureThreshold int `yaml:"failure_threshold"`

	// RestartAttempts bounds session restarts before the run terminates.
	RestartAttempts int `yaml:"restart_attempts"`

	// ChangedPolicy is the disposition for edited messages.
	ChangedPolicy ChangedPolicy `yaml:"changed_policy"`

	// PacingDelay separates consecutive recipients.
	PacingDelay time.Duration `yaml:"pacing_delay"`
}

// Default returns the production defaults. Paths default to the
// ~/.wasend data directory.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".wasend")

	return Config{
		ContactsPath:      "contacts.csv",
		LedgerPath:        filepath.Join(dataDir, "ledger.json"),
		UserDataDir:       filepath.Join(dataDir, "profile"),
		Headless:          false,
		WaitTimeout:       50 * time.Second,
		LoginTimeout:      10 * time.Minute,
		MaxRetries:        5,
		RetryDelay:        2 * time.Second,
		BackoffMultiplier: 1.5,
		RefreshInterval:   30 * time.Minute,
		FailureThreshold:  3,
		RestartAttempts:   3,
		ChangedPolicy:     ChangedSkip,
		PacingDelay:       2 * time.Second,
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a sane run.
func (c *Config) Validate() error {
	if c.ContactsPath == "" {
		return fmt.Errorf("contacts_path is required")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.BackoffMultiplier < 1.0 {
		return fmt.Errorf("backoff_multiplier must be at least 1.0")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait_timeout must be positive")
	}
	if c.LoginTimeout <= 0 {
		return fmt.Errorf("login_timeout must be positive")
	}
	switch c.ChangedPolicy {
	case ChangedSkip, ChangedResend, ChangedPrompt:
	default:
		return fmt.Errorf("changed_policy must be one of skip, resend, prompt (got %q)", c.ChangedPolicy)
	}
	return nil
}
