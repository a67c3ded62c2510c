package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// Query commands
const (
	LevelCommand   = "l"
	GetModeCommand = "m"
)

// TuneCommand builds the set-frequency command
func TuneCommand(hz int64) string {
	return fmt.Sprintf("F %d", hz)
}

// ModeCommand builds the set-mode command
func ModeCommand(mode string) string {
	return "M " + mode
}

// SquelchCommand builds the set-squelch command
func SquelchCommand(level float64) string {
	return "L SQL " + strconv.FormatFloat(level, 'f', -1, 64)
}

// ParseLevel converts a level response into a number.
func ParseLevel(response string) (float64, error) {
	level, err := strconv.ParseFloat(strings.TrimSpace(response), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: level %q", ErrMalformedResponse, response)
	}
	return level, nil
}
