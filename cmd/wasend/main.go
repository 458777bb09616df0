// Package main provides the wasend CLI: a headless bulk-delivery run
// against WhatsApp Web. It wires the progress ledger, session lifecycle
// manager, retry controller, and tiered text delivery into one
// resumable, idempotent run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/theharshit2202/Whatsapp-Automation/pkg/browser"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/config"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/contacts"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/engine"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/ledger"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/logging"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/notify"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/retry"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/session"
	"github.com/theharshit2202/Whatsapp-Automation/pkg/textinput"
)

const version = "1.0.0"

// cliFlags holds command-line overrides applied over the config file.
type cliFlags struct {
	ConfigFile  string
	Contacts    string
	Ledger      string
	Headless    bool
	ResetLedger bool
	ShowVersion bool
}

func main() {
	flags := parseFlags()

	if flags.ShowVersion {
		fmt.Printf("wasend v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Graceful shutdown: the stop is observed at the next recipient
	// boundary, never mid-delivery.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStop requested, finishing current recipient...")
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		cancel()
		log.Printf("Run failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&flags.Contacts, "contacts", "", "Path to contacts CSV (overrides config)")
	flag.StringVar(&flags.Ledger, "ledger", "", "Path to progress ledger (overrides config)")
	flag.BoolVar(&flags.Headless, "headless", false, "Run the browser headless (requires an authenticated profile)")
	flag.BoolVar(&flags.ResetLedger, "reset-ledger", false, "Archive and reset the progress ledger before the run")
	flag.BoolVar(&flags.ShowVersion, "version", false, "Show version and exit")
	flag.Parse()

	return flags
}

func run(ctx context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	if flags.Contacts != "" {
		cfg.ContactsPath = flags.Contacts
	}
	if flags.Ledger != "" {
		cfg.LedgerPath = flags.Ledger
	}
	if flags.Headless {
		cfg.Headless = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logErr := logging.NewLogger("main")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", logErr)
	}
	defer logger.Close()
	logger.Infof("wasend v%s starting, run %s", version, logger.RunID())

	recipients, err := contacts.LoadCSV(cfg.ContactsPath)
	if err != nil {
		return err
	}
	logger.Infof("loaded %d recipients from %s", len(recipients), cfg.ContactsPath)

	led, err := openLedger(cfg, flags.ResetLedger, logger)
	if err != nil {
		return err
	}

	sink := notify.MultiSink{
		notify.NewLogSink(logger),
		newConsoleSink(os.Stdout),
	}

	launcher := browser.NewPlaywrightLauncher(browser.LaunchOptions{
		UserDataDir:    cfg.UserDataDir,
		Headless:       cfg.Headless,
		DefaultTimeout: cfg.WaitTimeout,
	}, logger)
	defer launcher.Shutdown()

	sess := session.NewManager(launcher, session.Config{
		RefreshInterval:  cfg.RefreshInterval,
		FailureThreshold: cfg.FailureThreshold,
		RestartAttempts:  cfg.RestartAttempts,
		RestartDelay:     cfg.RetryDelay,
		HealthTimeout:    cfg.WaitTimeout,
		LoginTimeout:     cfg.LoginTimeout,
		OnRestart:        sink.SessionRestarted,
	}, logger)
	defer sess.Shutdown()

	eng := engine.New(
		cfg,
		led,
		sess,
		retry.NewController(logger),
		textinput.NewDeliverer(logger),
		sink,
		newStdinPrompter(os.Stdin, os.Stdout),
		logger,
	)

	summary, err := eng.Run(ctx, recipients)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, summary)
	return nil
}

// openLedger loads the progress ledger, archiving a corrupt file before
// falling back to an empty one, and optionally resetting it first.
func openLedger(cfg config.Config, reset bool, logger *logging.Logger) (*ledger.Ledger, error) {
	led := ledger.New(cfg.LedgerPath, logger)

	if reset {
		archive, err := led.Reset()
		if err != nil {
			return nil, fmt.Errorf("ledger reset failed: %w", err)
		}
		if archive != "" {
			fmt.Printf("Previous ledger archived to %s\n", archive)
		}
		return led, nil
	}

	if _, err := led.Load(); err != nil {
		if !errors.Is(err, ledger.ErrCorrupt) {
			return nil, err
		}
		archive, backupErr := led.BackupCorrupt()
		if backupErr != nil {
			return nil, fmt.Errorf("could not archive corrupt ledger: %w", backupErr)
		}
		fmt.Fprintf(os.Stderr, "Warning: ledger was corrupt; archived to %s and starting empty\n", archive)
		if _, err := led.Load(); err != nil {
			return nil, err
		}
	}
	return led, nil
}
