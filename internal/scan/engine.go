// Package scan runs the scanning control loop: tune a channel, poll its
// signal level, and hold on active channels until they go quiet.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gqrxscan/internal/channels"
	"gqrxscan/internal/remote"
)

// Default policy values
const (
	DefaultThreshold         = -20.0
	DefaultActivityWait      = 5 * time.Second
	DefaultPollInterval      = time.Second
	DefaultRangePollInterval = 500 * time.Millisecond
	DefaultStep              = 500
	DefaultRangeMode         = "WFM"
)

// Receiver is the subset of the remote control used while scanning
type Receiver interface {
	Tune(ctx context.Context, hz int64) (string, error)
	SetMode(ctx context.Context, mode string) (string, error)
	SetSquelch(ctx context.Context, level float64) (string, error)
	Level(ctx context.Context) (float64, error)
}

// Policy decides what counts as activity and how long to hold on it
type Policy struct {
	// Threshold is the level at or above which a channel is active. It is
	// also sent to the receiver as the squelch level.
	Threshold float64
	// ActivityWait bounds each wait for operator acknowledgment.
	ActivityWait time.Duration
	// PollInterval is the settle time between tuning and reading the level.
	PollInterval time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		Threshold:    DefaultThreshold,
		ActivityWait: DefaultActivityWait,
		PollInterval: DefaultPollInterval,
	}
}

// Range describes a continuous sweep between two frequencies in Hz
type Range struct {
	Min  int64
	Max  int64
	Step int64
	Mode string
	// Save names a file for active frequencies. Not implemented.
	Save string
}

// Validate checks the range bounds. Saving is refused until a file format
// is settled.
func (r Range) Validate() error {
	if r.Min <= 0 || r.Max <= 0 {
		return fmt.Errorf("%w: bounds must be positive (min=%d, max=%d)", ErrInvalidRange, r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %d is above max %d", ErrInvalidRange, r.Min, r.Max)
	}
	if r.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidRange, r.Step)
	}
	if strings.TrimSpace(r.Mode) == "" {
		return fmt.Errorf("%w: mode is required", ErrInvalidRange)
	}
	if r.Save != "" {
		return fmt.Errorf("%w: %s", ErrSaveNotImplemented, r.Save)
	}
	return nil
}

// channel is what a single scan step tunes to
type channel struct {
	frequency int64
	mode      string
	label     string
}

// Engine drives a receiver through a scan
type Engine struct {
	receiver Receiver
	operator Operator
	policy   Policy
	out      io.Writer
	logger   *logrus.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates a scan engine writing status lines to out
func NewEngine(receiver Receiver, operator Operator, policy Policy, out io.Writer, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}

	return &Engine{
		receiver: receiver,
		operator: operator,
		policy:   policy,
		out:      out,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// RunList scans the table in order, wrapping after the last entry, until ctx
// is cancelled or the receiver fails.
func (e *Engine) RunList(ctx context.Context, table *channels.Table) error {
	if err := table.Scannable(); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"channels":  table.Len(),
		"threshold": e.policy.Threshold,
	}).Info("Starting list scan")

	for i := 0; ; i = (i + 1) % table.Len() {
		entry := table.At(i)
		ch := channel{
			frequency: entry.Frequency,
			mode:      entry.Mode,
			label:     entry.DisplayLabel(),
		}
		if err := e.step(ctx, ch); err != nil {
			return err
		}
	}
}

// RunRange sweeps r.Min to r.Max in r.Step increments, restarting at r.Min.
func (e *Engine) RunRange(ctx context.Context, r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"min":       r.Min,
		"max":       r.Max,
		"step":      r.Step,
		"mode":      r.Mode,
		"threshold": e.policy.Threshold,
	}).Info("Starting range scan")

	freq := r.Min
	for {
		if err := e.step(ctx, channel{frequency: freq, mode: r.Mode, label: "-"}); err != nil {
			return err
		}
		freq += r.Step
		if freq > r.Max {
			freq = r.Min
		}
	}
}

// step tunes one channel, polls it and holds while it is active. It returns
// nil when the cursor should advance.
func (e *Engine) step(ctx context.Context, ch channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.tune(ctx, ch); err != nil {
		return err
	}

	if err := e.sleep(ctx, e.policy.PollInterval); err != nil {
		return err
	}

	active, err := e.poll(ctx, ch)
	if err != nil || !active {
		return err
	}

	fmt.Fprintf(e.out, "SIGNAL! %s %d %s\n", e.now().Format("15:04"), ch.frequency, ch.label)
	e.logger.WithFields(logrus.Fields{
		"frequency": ch.frequency,
		"label":     ch.label,
	}).Info("Activity detected")

	return e.hold(ctx, ch)
}

// tune sets frequency, mode and squelch and prints the status line
func (e *Engine) tune(ctx context.Context, ch channel) error {
	tuned, err := e.receiver.Tune(ctx, ch.frequency)
	if err != nil {
		return fmt.Errorf("failed to tune %d: %w", ch.frequency, err)
	}
	mode, err := e.receiver.SetMode(ctx, ch.mode)
	if err != nil {
		return fmt.Errorf("failed to set mode %s: %w", ch.mode, err)
	}
	squelch, err := e.receiver.SetSquelch(ctx, e.policy.Threshold)
	if err != nil {
		return fmt.Errorf("failed to set squelch: %w", err)
	}

	fmt.Fprintln(e.out, strings.Join([]string{
		ch.label,
		strconv.FormatInt(ch.frequency, 10),
		tuned,
		mode,
		squelch,
	}, "\t"))

	return nil
}

// poll reads the level and compares it with the threshold. A malformed level
// is logged and reported as inactive so the scan moves on.
func (e *Engine) poll(ctx context.Context, ch channel) (bool, error) {
	level, err := e.receiver.Level(ctx)
	if errors.Is(err, remote.ErrMalformedResponse) {
		e.logger.WithError(err).WithField("frequency", ch.frequency).Warn("Skipping channel")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read level at %d: %w", ch.frequency, err)
	}

	e.logger.WithFields(logrus.Fields{
		"frequency": ch.frequency,
		"level":     level,
	}).Debug("Level")

	return level >= e.policy.Threshold, nil
}

// hold waits on the operator, re-polling after each acknowledgment or
// timeout, until the channel drops below the threshold.
func (e *Engine) hold(ctx context.Context, ch channel) error {
	for {
		acked, err := e.operator.Await(ctx, e.policy.ActivityWait)
		if err != nil {
			return err
		}
		if acked {
			e.logger.WithField("frequency", ch.frequency).Debug("Operator acknowledged")
		}

		active, err := e.poll(ctx, ch)
		if err != nil {
			return err
		}
		if !active {
			e.logger.WithField("frequency", ch.frequency).Info("Channel quiet, resuming")
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
