package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gqrxscan/internal/channels"
	"gqrxscan/internal/remote"
	"gqrxscan/internal/scan"
)

// Application represents the main application
type Application struct {
	config Config
	logger *logrus.Logger
	stdin  io.Reader
	stdout io.Writer
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config: config,
		logger: logger,
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
}

// Start scans the channel file until interrupted
func (app *Application) Start() error {
	return app.run(false)
}

// StartRange sweeps the configured range until interrupted
func (app *Application) StartRange() error {
	return app.run(true)
}

// run scopes the scan to SIGINT/SIGTERM
func (app *Application) run(rangeMode bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"git_commit": GitCommit,
	}).Info("Starting gqrxscan")

	if err := app.scan(ctx, rangeMode); err != nil {
		app.logger.WithError(err).Error("Scan failed")
		return err
	}
	return nil
}

// scan validates configuration, checks the receiver is reachable and runs the
// engine. Cancellation of ctx is a clean stop.
func (app *Application) scan(ctx context.Context, rangeMode bool) error {
	if err := app.config.Validate(); err != nil {
		return err
	}

	var (
		table *channels.Table
		sweep scan.Range
		err   error
	)
	if rangeMode {
		if sweep, err = app.config.ScanRange(); err != nil {
			return err
		}
	} else {
		if table, err = app.loadChannels(); err != nil {
			return err
		}
	}

	client := remote.NewClient(app.config.Address(), app.config.IOTimeout(), app.logger)
	mode, err := client.Mode(ctx)
	if err != nil {
		return fmt.Errorf("receiver not reachable: %w", err)
	}
	app.logger.WithFields(logrus.Fields{
		"address": client.Address().String(),
		"mode":    mode,
	}).Info("Connected to receiver")

	policy := app.config.Policy(rangeMode)
	engine := scan.NewEngine(client, scan.NewConsole(app.stdin), policy, app.stdout, app.logger)

	if rangeMode {
		err = engine.RunRange(ctx, sweep)
	} else {
		err = engine.RunList(ctx, table)
	}

	if stopped(ctx, err) {
		app.logger.Info("Scan stopped")
		return nil
	}
	return err
}

// stopped reports whether err ends the scan because ctx is done. A deadline
// error counts only once ctx's own deadline has passed, so a receiver timeout
// is still a failure.
func stopped(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return true
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	deadline, ok := ctx.Deadline()
	return ok && !time.Now().Before(deadline)
}

// loadChannels reads the channel file and rejects tables too small to scan
func (app *Application) loadChannels() (*channels.Table, error) {
	delimiter, err := channels.ParseDelimiter(app.config.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	table, err := channels.LoadFile(app.config.CSVPath, delimiter)
	if err != nil {
		return nil, err
	}
	for _, line := range table.Skipped() {
		app.logger.WithFields(logrus.Fields{
			"file": app.config.CSVPath,
			"line": line,
		}).Warn("Skipping row without a mode")
	}
	if err := table.Scannable(); err != nil {
		return nil, fmt.Errorf("%s: %w", app.config.CSVPath, err)
	}

	for _, e := range table.Entries() {
		app.logger.WithFields(logrus.Fields{
			"frequency": e.Frequency,
			"mode":      e.Mode,
			"label":     e.DisplayLabel(),
		}).Debug("Loaded channel")
	}
	app.logger.WithFields(logrus.Fields{
		"file":     app.config.CSVPath,
		"channels": table.Len(),
	}).Info("Loaded channel file")

	return table, nil
}
