package parser

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedDelimitedLine is returned with a partial row when a quoted cell is never closed
var ErrMalformedDelimitedLine = errors.New("malformed delimited line: unterminated quote")

func errNotParsable(format Format) error {
	return errors.Errorf("sample is not %s", format)
}

// Cell is one parsed delimited value
type Cell struct {
	Value  string
	Quoted bool
}

// SplitDelimited splits one line into cells following RFC 4180 quoting: a cell that
// starts with a double quote runs to the next lone quote and "" inside it stands
// for one quote. Text between a closing quote and the next delimiter is kept as is.
//
// An unterminated quote stops the scan: the cells completed before it are returned
// together with ErrMalformedDelimitedLine. Every iteration consumes at least one
// byte, so the scan ends for any input.
func SplitDelimited(line string, delim byte) ([]Cell, error) {
	var cells []Cell
	i := 0
	for {
		if i < len(line) && line[i] == '"' {
			value, next, ok := scanQuoted(line, i+1)
			if !ok {
				return cells, ErrMalformedDelimitedLine
			}
			end := indexFrom(line, next, delim)
			value += line[next:end]
			cells = append(cells, Cell{Value: value, Quoted: true})
			i = end
		} else {
			end := indexFrom(line, i, delim)
			cells = append(cells, Cell{Value: line[i:end]})
			i = end
		}

		if i >= len(line) {
			return cells, nil
		}
		// skip the delimiter; a trailing one yields a final empty cell
		i++
		if i == len(line) {
			return append(cells, Cell{}), nil
		}
	}
}

// scanQuoted reads a quoted cell body starting after the opening quote and returns
// the unescaped value and the index after the closing quote
func scanQuoted(line string, start int) (string, int, bool) {
	var b strings.Builder
	i := start
	for i < len(line) {
		c := line[i]
		if c != '"' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(line) && line[i+1] == '"' {
			b.WriteByte('"')
			i += 2
			continue
		}
		return b.String(), i + 1, true
	}
	return "", len(line), false
}

func indexFrom(line string, from int, delim byte) int {
	if from >= len(line) {
		return len(line)
	}
	if j := strings.IndexByte(line[from:], delim); j >= 0 {
		return from + j
	}
	return len(line)
}

// CellValues returns the values of cells
func CellValues(cells []Cell) []string {
	values := make([]string, len(cells))
	for i, c := range cells {
		values[i] = c.Value
	}
	return values
}
