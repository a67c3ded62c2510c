// Package remote implements the gqrx remote control protocol: one text
// command per TCP connection, answered by a single response line.
package remote

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Default remote control settings
const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 7356
	DefaultTimeout = 5 * time.Second

	quitCommand = "q"
)

// Address identifies the receiver's remote control endpoint.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Client sends commands to a receiver over short-lived connections
type Client struct {
	addr    Address
	timeout time.Duration
	logger  *logrus.Logger
}

// NewClient creates a client for addr. A zero timeout disables the per-call
// I/O deadline.
func NewClient(addr Address, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		addr:    addr,
		timeout: timeout,
		logger:  logger,
	}
}

// Address returns the receiver endpoint
func (c *Client) Address() Address {
	return c.addr
}

// Send opens a connection, writes command, reads one response line, sends the
// quit token and closes the connection.
func (c *Client) Send(ctx context.Context, command string) (string, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr.String())
	if err != nil {
		return "", &ConnError{Addr: c.addr, Err: err}
	}
	defer conn.Close()

	if c.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return "", fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	if _, err := io.WriteString(conn, command+"\n"); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", command, err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", fmt.Errorf("%w to %q", ErrNoResponse, command)
		}
		return "", fmt.Errorf("failed to read response to %q: %w", command, err)
	}
	response := strings.TrimSpace(line)

	if _, err := io.WriteString(conn, quitCommand+"\n"); err != nil {
		c.logger.WithError(err).Debug("Failed to send quit")
	}

	c.logger.WithFields(logrus.Fields{
		"command":  command,
		"response": response,
	}).Debug("Remote command")

	return response, nil
}

// Tune sets the receiver frequency in Hz
func (c *Client) Tune(ctx context.Context, hz int64) (string, error) {
	return c.Send(ctx, TuneCommand(hz))
}

// SetMode sets the demodulator mode, e.g. "WFM" or "NFM"
func (c *Client) SetMode(ctx context.Context, mode string) (string, error) {
	return c.Send(ctx, ModeCommand(mode))
}

// SetSquelch sets the squelch level
func (c *Client) SetSquelch(ctx context.Context, level float64) (string, error) {
	return c.Send(ctx, SquelchCommand(level))
}

// Level reads the current signal level.
func (c *Client) Level(ctx context.Context) (float64, error) {
	response, err := c.Send(ctx, LevelCommand)
	if err != nil {
		return 0, err
	}
	return ParseLevel(response)
}

// Mode reads the current demodulator mode
func (c *Client) Mode(ctx context.Context) (string, error) {
	response, err := c.Send(ctx, GetModeCommand)
	if err != nil {
		return "", err
	}
	return response, nil
}
