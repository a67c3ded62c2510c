// Package channels loads the scan list: an ordered table of frequencies, each
// with a demodulator mode and an optional label.
package channels

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Loader defaults
const (
	DefaultPath      = "freq.csv"
	DefaultDelimiter = ','
	MinChannels      = 2

	labelSeparator = ", "
	displayScale   = 1e5
)

var (
	// ErrTooFewChannels indicates a table too small to scan
	ErrTooFewChannels = errors.New("not enough frequencies to scan")

	// ErrInvalidRow indicates a row that cannot be turned into a channel
	ErrInvalidRow = errors.New("invalid channel row")
)

// Entry is one channel of the scan list
type Entry struct {
	Frequency int64
	Mode      string
	Label     string
	HasLabel  bool
}

// DisplayLabel returns the label, or "-" when the row had none
func (e Entry) DisplayLabel() string {
	if !e.HasLabel {
		return "-"
	}
	return e.Label
}

// Table is an ordered set of channels keyed by frequency.
type Table struct {
	entries []Entry
	index   map[int64]int
	skipped []int
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{index: make(map[int64]int)}
}

// Put adds e. A frequency already present keeps its position and takes the
// mode and label of e.
func (t *Table) Put(e Entry) {
	if i, ok := t.index[e.Frequency]; ok {
		t.entries[i] = e
		return
	}
	t.index[e.Frequency] = len(t.entries)
	t.entries = append(t.entries, e)
}

// Len returns the number of distinct frequencies
func (t *Table) Len() int {
	return len(t.entries)
}

// At returns the entry at position i
func (t *Table) At(i int) Entry {
	return t.entries[i]
}

// Lookup finds the entry for a frequency
func (t *Table) Lookup(hz int64) (Entry, bool) {
	i, ok := t.index[hz]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns a copy of the entries in scan order
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Skipped returns the line numbers of rows that had a frequency but no mode
func (t *Table) Skipped() []int {
	return append([]int(nil), t.skipped...)
}

// Scannable reports whether the table holds enough channels to scan
func (t *Table) Scannable() error {
	if t.Len() < MinChannels {
		return fmt.Errorf("%w: found %d, need at least %d", ErrTooFewChannels, t.Len(), MinChannels)
	}
	return nil
}

// LoadFile reads a delimiter-separated channel file
func LoadFile(path string, delimiter rune) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel file: %w", err)
	}
	defer file.Close()

	table, err := Load(file, delimiter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Load parses rows of the form frequency, mode[, label parts...]. Label parts
// are joined with ", ". Empty rows are skipped, as are rows holding only a
// valid frequency; see Table.Skipped.
func Load(r io.Reader, delimiter rune) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	table := NewTable()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read channel file: %w", err)
		}
		if isEmptyRow(row) {
			continue
		}

		line, _ := reader.FieldPos(0)
		entry, ok, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			table.skipped = append(table.skipped, line)
			continue
		}
		table.Put(entry)
	}

	return table, nil
}

func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// parseRow reports ok=false for a row without a mode column
func parseRow(row []string) (Entry, bool, error) {
	hz, err := ParseFrequency(row[0])
	if err != nil {
		return Entry{}, false, err
	}
	if len(row) < 2 {
		return Entry{}, false, nil
	}

	entry := Entry{
		Frequency: hz,
		Mode:      strings.TrimSpace(row[1]),
	}
	if len(row) > 2 {
		entry.Label = strings.Join(row[2:], labelSeparator)
		entry.HasLabel = true
	}

	return entry, true, nil
}

// ParseFrequency converts a display-unit frequency to Hz. The value is scaled
// by 1e5, written in shortest decimal form with at least one fractional digit,
// and read back with the decimal point removed. For MHz values with a single
// fractional digit this is exact: "100.0" and "100" both give 100000000.
func ParseFrequency(s string) (int64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frequency %q", ErrInvalidRow, s)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: frequency %q must be positive", ErrInvalidRow, s)
	}

	digits := strconv.FormatFloat(value*displayScale, 'f', -1, 64)
	if !strings.Contains(digits, ".") {
		digits += ".0"
	}
	digits = strings.Replace(digits, ".", "", 1)

	hz, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frequency %q out of range", ErrInvalidRow, s)
	}
	return hz, nil
}

// ParseDelimiter accepts a single character or the escape \t
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '\n' || r == '\r' || r == '"' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}
