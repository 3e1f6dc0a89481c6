// Package csvparse splits loosely quoted delimited text into fields and
// resolves header names to column positions.
package csvparse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedRow marks a row that is skipped and counted rather than fatal
var ErrMalformedRow = errors.New("malformed row")

// MissingRequiredColumnError is returned when a header lacks a column the
// reader cannot do without. It aborts the whole file.
type MissingRequiredColumnError struct {
	Column string
	Source string
}

func (e *MissingRequiredColumnError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("missing required column %s", e.Column)
	}
	return fmt.Sprintf("%s: missing required column %s", e.Source, e.Column)
}

// maxLineSize bounds a single physical line. Longer lines are consumed and
// reported with no fields.
const maxLineSize = 4 * 1024 * 1024

// SplitLine splits a line on delim outside double quotes. Every quote toggles
// the quoted state and is dropped from the field value.
func SplitLine(line string, delim rune) []string {
	line = strings.TrimRight(line, "\r\n")

	fields := make([]string, 0, 16)
	var current strings.Builder
	inQuotes := false
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == delim && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(fields, current.String())
}

// Scanner streams non-blank lines of a delimited file as field slices
type Scanner struct {
	reader *bufio.Reader
	delim  rune
	fields []string
	line   int
	done   bool
	err    error
}

// NewScanner creates a scanner over r splitting on delim
func NewScanner(r io.Reader, delim rune) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024), delim: delim}
}

// Next advances to the next non-blank line. A line over maxLineSize is
// returned with nil fields so the caller counts it as malformed.
func (s *Scanner) Next() bool {
	for !s.done {
		text, tooLong, err := s.readLine()
		if err != nil {
			s.done = true
			if err != io.EOF {
				s.err = err
				return false
			}
			if text == "" && !tooLong {
				return false
			}
		}
		s.line++
		if tooLong {
			s.fields = nil
			return true
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		s.fields = SplitLine(text, s.delim)
		return true
	}
	return false
}

// readLine reads one physical line. Content past maxLineSize is discarded.
func (s *Scanner) readLine() (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := s.reader.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return string(buf), tooLong, err
	}
}

// Fields returns the fields of the current line
func (s *Scanner) Fields() []string {
	return s.fields
}

// Line returns the 1-based physical line number of the current line
func (s *Scanner) Line() int {
	return s.line
}

// Err returns the first read error, if any
func (s *Scanner) Err() error {
	return s.err
}
