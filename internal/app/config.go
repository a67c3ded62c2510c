package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"gqrxscan/internal/channels"
	"gqrxscan/internal/remote"
	"gqrxscan/internal/scan"
)

// Default configuration constants
const (
	DefaultCSVPath     = channels.DefaultPath
	DefaultDelimiter   = ","
	DefaultHostname    = remote.DefaultHost
	DefaultPort        = remote.DefaultPort
	DefaultThreshold   = scan.DefaultThreshold
	DefaultWaitSeconds = 5
	DefaultTimeout     = 5.0 // seconds
	DefaultRangeStep   = scan.DefaultStep
	DefaultRangeMode   = scan.DefaultRangeMode
)

// ErrInvalidConfig indicates a configuration that cannot be used
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration. Durations are in seconds so the
// YAML file stays readable.
type Config struct {
	CSVPath   string `yaml:"csv"`
	Delimiter string `yaml:"delimiter"`
	Hostname  string `yaml:"hostname"`
	Port      int    `yaml:"port"`

	Threshold   float64 `yaml:"threshold"`
	WaitSeconds int     `yaml:"wait"`
	// PollInterval of zero selects the mode's default.
	PollInterval float64 `yaml:"interval"`
	Timeout      float64 `yaml:"timeout"`

	Range RangeConfig `yaml:"range"`

	Verbose     bool `yaml:"verbose"`
	ShowVersion bool `yaml:"-"`
}

// RangeConfig holds range mode settings. Bounds use the same display unit as
// the channel file.
type RangeConfig struct {
	Min  string `yaml:"min"`
	Max  string `yaml:"max"`
	Mode string `yaml:"mode"`
	Step int64  `yaml:"step"`
	Save string `yaml:"save"`
}

// DefaultConfig returns the configuration used when no flags are given
func DefaultConfig() Config {
	return Config{
		CSVPath:     DefaultCSVPath,
		Delimiter:   DefaultDelimiter,
		Hostname:    DefaultHostname,
		Port:        DefaultPort,
		Threshold:   DefaultThreshold,
		WaitSeconds: DefaultWaitSeconds,
		Timeout:     DefaultTimeout,
		Range: RangeConfig{
			Mode: DefaultRangeMode,
			Step: DefaultRangeStep,
		},
	}
}

// LoadConfigFile merges a YAML file into cfg. Keys absent from the file keep
// their current values.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	return nil
}

// Validate checks settings shared by both scan modes
func (c Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("%w: hostname is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.WaitSeconds < 1 {
		return fmt.Errorf("%w: wait must be at least 1 second, got %d", ErrInvalidConfig, c.WaitSeconds)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: interval must not be negative", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := channels.ParseDelimiter(c.Delimiter); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Address returns the receiver endpoint
func (c Config) Address() remote.Address {
	return remote.Address{Host: c.Hostname, Port: c.Port}
}

// IOTimeout returns the per-command network timeout
func (c Config) IOTimeout() time.Duration {
	return seconds(c.Timeout)
}

// Policy returns the scan policy for list or range mode
func (c Config) Policy(rangeMode bool) scan.Policy {
	policy := scan.Policy{
		Threshold:    c.Threshold,
		ActivityWait: time.Duration(c.WaitSeconds) * time.Second,
		PollInterval: seconds(c.PollInterval),
	}

	if c.PollInterval == 0 {
		policy.PollInterval = scan.DefaultPollInterval
		if rangeMode {
			policy.PollInterval = scan.DefaultRangePollInterval
		}
	}

	return policy
}

// ScanRange converts the range settings to Hz
func (c Config) ScanRange() (scan.Range, error) {
	if c.Range.Min == "" || c.Range.Max == "" {
		return scan.Range{}, fmt.Errorf("%w: range needs both min and max", ErrInvalidConfig)
	}

	low, err := channels.ParseFrequency(c.Range.Min)
	if err != nil {
		return scan.Range{}, fmt.Errorf("%w: min: %v", ErrInvalidConfig, err)
	}
	high, err := channels.ParseFrequency(c.Range.Max)
	if err != nil {
		return scan.Range{}, fmt.Errorf("%w: max: %v", ErrInvalidConfig, err)
	}

	r := scan.Range{
		Min:  low,
		Max:  high,
		Step: c.Range.Step,
		Mode: c.Range.Mode,
		Save: c.Range.Save,
	}
	return r, r.Validate()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
