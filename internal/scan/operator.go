package scan

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"
)

// Operator is asked to acknowledge activity. Await blocks until the operator
// responds or timeout elapses, whichever comes first.
type Operator interface {
	Await(ctx context.Context, timeout time.Duration) (acknowledged bool, err error)
}

// Console reads operator input as lines of text. Any submitted line ends the
// wait; only an empty line counts as an acknowledgment.
type Console struct {
	lines chan string
}

// NewConsole starts reading lines from r. The reader goroutine exits at EOF.
func NewConsole(r io.Reader) *Console {
	c := &Console{lines: make(chan string, 16)}

	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()

	return c
}

// Await waits for a line or the timeout. Lines typed before the call are
// discarded.
func (c *Console) Await(ctx context.Context, timeout time.Duration) (bool, error) {
	lines := c.drain()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, nil
		case line, ok := <-lines:
			if !ok {
				// input closed, only the timer is left
				lines = nil
				continue
			}
			return strings.TrimSpace(line) == "", nil
		}
	}
}

// drain discards buffered lines and returns the channel to wait on, or nil
// once input has ended.
func (c *Console) drain() <-chan string {
	for {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return nil
			}
		default:
			return c.lines
		}
	}
}
