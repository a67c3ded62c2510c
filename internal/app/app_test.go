package app

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gqrxscan/internal/channels"
	"gqrxscan/internal/remote"
	"gqrxscan/internal/scan"
)

// startReceiver runs a minimal gqrx remote control on a loopback port
func startReceiver(t *testing.T, level string) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					switch strings.TrimSpace(line) {
					case "q":
						return
					case "l":
						io.WriteString(conn, level+"\n")
					case "m":
						io.WriteString(conn, "WFM\n")
					default:
						io.WriteString(conn, "RPRT 0\n")
					}
				}
			}(conn)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

func writeChannels(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freq.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestApplication(config Config, out io.Writer) *Application {
	app := NewApplication(config)
	app.logger.SetOutput(io.Discard)
	app.stdin = strings.NewReader("")
	app.stdout = out
	return app
}

// TestConstants tests the default configuration constants
func TestConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant interface{}
		expected interface{}
	}{
		{"DefaultCSVPath", DefaultCSVPath, "freq.csv"},
		{"DefaultDelimiter", DefaultDelimiter, ","},
		{"DefaultHostname", DefaultHostname, "127.0.0.1"},
		{"DefaultPort", DefaultPort, 7356},
		{"DefaultThreshold", DefaultThreshold, -20.0},
		{"DefaultWaitSeconds", DefaultWaitSeconds, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.constant)
		})
	}
}

// TestConfig_Validate tests configuration validation
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"Defaults", func(c *Config) {}, false},
		{"Empty hostname", func(c *Config) { c.Hostname = "" }, true},
		{"Zero port", func(c *Config) { c.Port = 0 }, true},
		{"Port too large", func(c *Config) { c.Port = 70000 }, true},
		{"Zero wait", func(c *Config) { c.WaitSeconds = 0 }, true},
		{"Negative interval", func(c *Config) { c.PollInterval = -1 }, true},
		{"Negative timeout", func(c *Config) { c.Timeout = -1 }, true},
		{"Zero timeout disables deadline", func(c *Config) { c.Timeout = 0 }, false},
		{"Tab delimiter", func(c *Config) { c.Delimiter = `\t` }, false},
		{"Long delimiter", func(c *Config) { c.Delimiter = ";;" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)

			err := config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestConfig_Policy tests conversion to the scan policy
func TestConfig_Policy(t *testing.T) {
	config := DefaultConfig()

	list := config.Policy(false)
	assert.Equal(t, -20.0, list.Threshold)
	assert.Equal(t, 5*time.Second, list.ActivityWait)
	assert.Equal(t, scan.DefaultPollInterval, list.PollInterval)

	assert.Equal(t, scan.DefaultRangePollInterval, config.Policy(true).PollInterval)

	config.PollInterval = 0.25
	config.WaitSeconds = 10
	custom := config.Policy(true)
	assert.Equal(t, 250*time.Millisecond, custom.PollInterval)
	assert.Equal(t, 10*time.Second, custom.ActivityWait)
}

// TestConfig_ScanRange tests range conversion
func TestConfig_ScanRange(t *testing.T) {
	tests := []struct {
		name     string
		rng      RangeConfig
		expected scan.Range
		wantErr  error
	}{
		{
			name:     "FM broadcast band",
			rng:      RangeConfig{Min: "88", Max: "108", Mode: "WFM", Step: 100000},
			expected: scan.Range{Min: 88000000, Max: 108000000, Step: 100000, Mode: "WFM"},
		},
		{
			name:    "Missing max",
			rng:     RangeConfig{Min: "88", Mode: "WFM", Step: 100000},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "Bad min",
			rng:     RangeConfig{Min: "low", Max: "108", Mode: "WFM", Step: 100000},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "Inverted",
			rng:     RangeConfig{Min: "108", Max: "88", Mode: "WFM", Step: 100000},
			wantErr: scan.ErrInvalidRange,
		},
		{
			name:    "Save requested",
			rng:     RangeConfig{Min: "88", Max: "108", Mode: "WFM", Step: 100000, Save: "hits.txt"},
			wantErr: scan.ErrSaveNotImplemented,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Range = tt.rng

			r, err := config.ScanRange()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}
}

// TestLoadConfigFile tests YAML merging over defaults
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gqrxscan.yaml")
	content := `
hostname: 192.168.1.20
port: 7357
threshold: -35.5
wait: 8
range:
  min: "144"
  max: "146"
  mode: NFM
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, LoadConfigFile(path, &config))

	assert.Equal(t, "192.168.1.20", config.Hostname)
	assert.Equal(t, 7357, config.Port)
	assert.Equal(t, -35.5, config.Threshold)
	assert.Equal(t, 8, config.WaitSeconds)
	assert.Equal(t, "NFM", config.Range.Mode)
	assert.Equal(t, int64(DefaultRangeStep), config.Range.Step)
	assert.Equal(t, DefaultCSVPath, config.CSVPath)
}

// TestLoadConfigFile_Errors tests unreadable and unknown configuration
func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()

	assert.Error(t, LoadConfigFile(filepath.Join(dir, "missing.yaml"), &config))

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hostnme: typo\n"), 0644))
	assert.ErrorIs(t, LoadConfigFile(path, &config), ErrInvalidConfig)
}

// TestShowVersion tests the version display functionality
func TestShowVersion(t *testing.T) {
	var out bytes.Buffer
	ShowVersion(&out)

	assert.Contains(t, out.String(), "gqrxscan "+Version)
	assert.Contains(t, out.String(), "gqrx remote control")
	assert.Contains(t, out.String(), "Default receiver: 127.0.0.1:7356")
}

// TestNewApplication tests the application constructor
func TestNewApplication(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		config := DefaultConfig()
		config.Verbose = verbose

		app := NewApplication(config)
		require.NotNil(t, app)
		require.NotNil(t, app.logger)
		assert.Equal(t, verbose, app.logger.IsLevelEnabled(logrus.DebugLevel))
	}
}

// TestApplication_ScanList tests a list scan against a loopback receiver
func TestApplication_ScanList(t *testing.T) {
	config := DefaultConfig()
	config.CSVPath = writeChannels(t, "100.0,NFM,Tower\n101.5,WFM\n")
	config.Port = startReceiver(t, "-30.0")
	config.PollInterval = 0.001

	var out bytes.Buffer
	app := newTestApplication(config, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)

	require.NoError(t, app.scan(ctx, false))

	output := out.String()
	assert.Contains(t, output, "Tower\t100000000\tRPRT 0\tRPRT 0\tRPRT 0\n")
	assert.Contains(t, output, "-\t101500000\tRPRT 0\tRPRT 0\tRPRT 0\n")
	assert.NotContains(t, output, "SIGNAL!")
}

// TestApplication_ScanRange tests a range sweep against a loopback receiver
func TestApplication_ScanRange(t *testing.T) {
	config := DefaultConfig()
	config.Port = startReceiver(t, "-50")
	config.PollInterval = 0.001
	config.Range = RangeConfig{Min: "100", Max: "100", Mode: "NFM", Step: 500}

	var out bytes.Buffer
	app := newTestApplication(config, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(200*time.Millisecond, cancel)

	require.NoError(t, app.scan(ctx, true))
	assert.Contains(t, out.String(), "-\t100000000\tRPRT 0")
}

// TestApplication_ScanList_SkipsFrequencyOnlyRows tests that a row without a mode is logged and left out
func TestApplication_ScanList_SkipsFrequencyOnlyRows(t *testing.T) {
	config := DefaultConfig()
	config.CSVPath = writeChannels(t, "100.0,NFM,Tower\n99.0\n101.5,WFM\n")
	config.Port = startReceiver(t, "-30.0")
	config.PollInterval = 0.001

	var out, logs bytes.Buffer
	app := newTestApplication(config, &out)
	app.logger.SetOutput(&logs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(200*time.Millisecond, cancel)

	require.NoError(t, app.scan(ctx, false))
	assert.NotContains(t, out.String(), "99000000")
	assert.Contains(t, logs.String(), "Skipping row without a mode")
}

// TestStopped tests which scan errors count as a clean stop
func TestStopped(t *testing.T) {
	timeout := fmt.Errorf("dial tcp: %w", context.DeadlineExceeded)

	assert.False(t, stopped(context.Background(), nil))
	assert.False(t, stopped(context.Background(), remote.ErrConnect))
	assert.True(t, stopped(context.Background(), fmt.Errorf("tune: %w", context.Canceled)))

	// a receiver timeout under a live context is a failure
	assert.False(t, stopped(context.Background(), timeout))

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	assert.True(t, stopped(expired, timeout))

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	assert.True(t, stopped(cancelled, remote.ErrConnect))
}

// TestApplication_Errors tests startup failures
func TestApplication_Errors(t *testing.T) {
	good := "100.0,NFM,Tower\n101.5,WFM\n"

	tests := []struct {
		name      string
		channels  string
		rangeMode bool
		modify    func(c *Config)
		wantErr   error
	}{
		{
			name:     "Receiver unreachable",
			channels: good,
			modify:   func(c *Config) { c.Port = closedPort(t) },
			wantErr:  remote.ErrConnect,
		},
		{
			name:     "Too few channels",
			channels: "100.0,NFM\n",
			modify:   func(c *Config) { c.Port = closedPort(t) },
			wantErr:  channels.ErrTooFewChannels,
		},
		{
			name:     "Bad channel row",
			channels: "abc,NFM\n101.5,WFM\n",
			modify:   func(c *Config) {},
			wantErr:  channels.ErrInvalidRow,
		},
		{
			name:     "Frequency-only row leaves too few channels",
			channels: "100.0\n101.5,WFM\n",
			modify:   func(c *Config) { c.Port = closedPort(t) },
			wantErr:  channels.ErrTooFewChannels,
		},
		{
			name:     "Invalid port",
			channels: good,
			modify:   func(c *Config) { c.Port = -1 },
			wantErr:  ErrInvalidConfig,
		},
		{
			name:      "Range without bounds",
			rangeMode: true,
			modify:    func(c *Config) {},
			wantErr:   ErrInvalidConfig,
		},
		{
			name:      "Range save",
			rangeMode: true,
			modify: func(c *Config) {
				c.Port = closedPort(t)
				c.Range = RangeConfig{Min: "88", Max: "108", Mode: "WFM", Step: 100000, Save: "hits.txt"}
			},
			wantErr: scan.ErrSaveNotImplemented,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			if tt.channels != "" {
				config.CSVPath = writeChannels(t, tt.channels)
			}
			config.Timeout = 1
			tt.modify(&config)

			app := newTestApplication(config, io.Discard)
			err := app.scan(context.Background(), tt.rangeMode)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
