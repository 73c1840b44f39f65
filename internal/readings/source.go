// Package readings supplies touch-sensor channel values to the stream loop.
package readings

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformedLine wraps parse failures so callers can skip a bad line and
// keep reading.
var ErrMalformedLine = errors.New("malformed line")

// Source yields one set of channel readings per call. It returns io.EOF when
// the stream is exhausted.
type Source interface {
	Next(ctx context.Context) ([]float32, error)
}

// LineSource reads one frame of readings per text line. Values are separated
// by commas and/or whitespace. Blank lines and lines starting with '#' are
// skipped.
type LineSource struct {
	scan *bufio.Scanner
	line int
}

// NewLineSource wraps r, e.g. os.Stdin or a recorded log file.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{scan: bufio.NewScanner(r)}
}

// Next parses the next non-empty line. Cancellation is checked between
// lines; a blocked read on r is not interrupted.
func (s *LineSource) Next(ctx context.Context) ([]float32, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scan.Scan() {
			if err := s.scan.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		s.line++

		text := strings.TrimSpace(s.scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		values, err := ParseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", s.line, ErrMalformedLine, err)
		}
		return values, nil
	}
}

// ParseLine parses comma and/or whitespace separated float values.
func ParseLine(text string) ([]float32, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, errors.New("no values")
	}

	values := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse value %d %q: %w", i+1, f, err)
		}
		values[i] = float32(v)
	}
	return values, nil
}
