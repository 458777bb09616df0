// Package session owns the automation session's lifecycle state machine.
// It detects degradation, schedules proactive refresh, and restarts the
// whole browser session on fatal signals without operator intervention.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/browser"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/outcome"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/retry"
)

// Config tunes the lifecycle manager.
type Config struct {
	// RefreshInterval triggers a proactive page refresh even absent
	// visible errors: the session degrades from prolonged duration alone,
	// so waiting for a failure signal is insufficient.
	RefreshInterval time.Duration

	// FailureThreshold is the consecutive-failure count that flags the
	// session Degraded and forces a health check.
	FailureThreshold int

	// RestartAttempts bounds how many times a restart is tried before the
	// session is Terminated.
	RestartAttempts int

	// RestartDelay separates restart attempts.
	RestartDelay time.Duration

	// HealthTimeout bounds the logged-in-UI probe during health checks
	// and refreshes.
	HealthTimeout time.Duration

	// LoginTimeout bounds the wait for the authenticated UI after a fresh
	// launch. Restart must re-establish the logged-in state before the
	// session reports Active.
	LoginTimeout time.Duration

	// OnRestart, if set, is invoked after every successful restart.
	OnRestart func()
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:  30 * time.Minute,
		FailureThreshold: 3,
		RestartAttempts:  3,
		RestartDelay:     5 * time.Second,
		HealthTimeout:    15 * time.Second,
		LoginTimeout:     browser.DefaultLoginTimeout,
	}
}

// Manager drives the state machine {Uninitialized, Active, Degraded,
// Recovering, Terminated}. Exactly one instance exists per run. It is
// not safe for concurrent use: all health evaluation happens in
// EnsureHealthy, called between recipients, never mid-operation.
type Manager struct {
	launcher browser.Launcher
	driver   browser.Driver
	cfg      Config
	log      *logging.Logger

	state          State
	startedAt      time.Time
	lastRefresh    time.Time
	consecFailures int
}

// NewManager creates a lifecycle manager in the Uninitialized state.
func NewManager(launcher browser.Launcher, cfg Config, logger *logging.Logger) *Manager {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.RestartAttempts <= 0 {
		cfg.RestartAttempts = DefaultConfig().RestartAttempts
	}
	return &Manager{
		launcher: launcher,
		cfg:      cfg,
		log:      logger,
		state:    Uninitialized,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State { return m.state }

// StartedAt returns when the current session came up, zero if never.
func (m *Manager) StartedAt() time.Time { return m.startedAt }

// Driver returns the live driver. Only valid while the state is Active.
func (m *Manager) Driver() browser.Driver { return m.driver }

// Start launches the session and waits for the authenticated UI. On
// success the state becomes Active.
func (m *Manager) Start(ctx context.Context) error {
	if m.state == Terminated {
		return outcome.ErrTerminated
	}

	driver, err := m.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to launch session: %w", err)
	}
	if err := browser.WaitForLogin(driver, m.cfg.LoginTimeout); err != nil {
		driver.Close()
		return err
	}

	now := time.Now()
	m.driver = driver
	m.state = Active
	m.startedAt = now
	m.lastRefresh = now
	m.consecFailures = 0
	m.infof("session active")
	return nil
}

// ReportFailure feeds one operation's failed outcome into the state
// machine. A fatal outcome moves Active to Recovering; consecutive
// retryable failures past the threshold flag the session Degraded.
func (m *Manager) ReportFailure(o outcome.Outcome) {
	if m.state == Terminated {
		return
	}
	if o.IsFatal() {
		m.warnf("fatal failure reported: %s", o.Reason)
		m.state = Recovering
		return
	}

	m.consecFailures++
	if m.state == Active && m.consecFailures > m.cfg.FailureThreshold {
		m.warnf("%d consecutive failures, flagging session degraded", m.consecFailures)
		m.state = Degraded
	}
}

// ReportSuccess resets the consecutive-failure counter.
func (m *Manager) ReportSuccess() {
	m.consecFailures = 0
}

// EnsureHealthy blocks until the state is Active or the session is
// Terminated, in which case it returns outcome.ErrTerminated and the
// caller stops the run with the ledger preserved as-is. Called by the
// orchestrator before each recipient.
func (m *Manager) EnsureHealthy(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch m.state {
		case Uninitialized:
			if err := m.Start(ctx); err != nil {
				m.warnf("initial start failed: %v", err)
				m.state = Recovering
			}

		case Active:
			if m.cfg.RefreshInterval > 0 && time.Since(m.lastRefresh) >= m.cfg.RefreshInterval {
				m.refresh()
				if m.state != Active {
					continue
				}
			}
			return nil

		case Degraded:
			if m.healthCheck() {
				m.infof("health check passed, session active")
				m.consecFailures = 0
				m.state = Active
			} else {
				m.warnf("health check failed, restarting session")
				m.state = Recovering
			}

		case Recovering:
			if err := m.restart(ctx); err != nil {
				m.state = Terminated
				m.errorf("restart failed permanently: %v", err)
				return outcome.ErrTerminated
			}
			m.state = Active
			if m.cfg.OnRestart != nil {
				m.cfg.OnRestart()
			}

		case Terminated:
			return outcome.ErrTerminated
		}
	}
}

// refresh reloads WhatsApp Web proactively and resets the refresh timer.
// A failed refresh sends the session to Recovering.
func (m *Manager) refresh() {
	m.infof("proactive refresh after %s", time.Since(m.lastRefresh).Round(time.Second))

	if err := browser.WaitForLogin(m.driver, m.cfg.HealthTimeout); err != nil {
		m.warnf("proactive refresh failed: %v", err)
		m.state = Recovering
		return
	}
	m.lastRefresh = time.Now()
}

// healthCheck probes whether the degraded session still answers and
// still shows the authenticated UI.
func (m *Manager) healthCheck() bool {
	if m.driver == nil || !m.driver.Alive() {
		return false
	}
	return m.driver.WaitFor(browser.SelectorNewChatButton, m.cfg.HealthTimeout) == nil
}

// restart discards the session entirely and reinitializes it, bounded by
// RestartAttempts. The logged-in state must be confirmed before the
// session reports Active; otherwise the manager escalates to Terminated
// rather than proceeding unauthenticated.
func (m *Manager) restart(ctx context.Context) error {
	if m.driver != nil {
		if err := m.driver.Close(); err != nil {
			m.warnf("error closing dead session: %v", err)
		}
		m.driver = nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.RestartAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.infof("restart attempt %d/%d", attempt, m.cfg.RestartAttempts)

		driver, err := m.launcher.Launch(ctx)
		if err == nil {
			if err = browser.WaitForLogin(driver, m.cfg.LoginTimeout); err == nil {
				now := time.Now()
				m.driver = driver
				m.startedAt = now
				m.lastRefresh = now
				m.consecFailures = 0
				m.infof("session restarted")
				return nil
			}
			driver.Close()
		}

		lastErr = err
		m.warnf("restart attempt %d failed: %v", attempt, err)
		if attempt < m.cfg.RestartAttempts && !retry.Sleep(ctx, m.cfg.RestartDelay) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("restart failed after %d attempts: %w", m.cfg.RestartAttempts, lastErr)
}

// Shutdown releases resources and moves the session to Terminated from
// any state.
func (m *Manager) Shutdown() {
	if m.driver != nil {
		if err := m.driver.Close(); err != nil {
			m.warnf("error during shutdown: %v", err)
		}
		m.driver = nil
	}
	m.state = Terminated
}

func (m *Manager) infof(format string, v ...interface{}) {
	if m.log != nil {
		m.log.Infof(format, v...)
	}
}

func (m *Manager) warnf(format string, v ...interface{}) {
	if m.log != nil {
		m.log.Warnf(format, v...)
	}
}

func (m *Manager) errorf(format string, v ...interface{}) {
	if m.log != nil {
		m.log.Errorf(format, v...)
	}
}
