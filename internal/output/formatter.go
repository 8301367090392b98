// Package output provides a set of formatters for query results.
// It is extendable and for now provides two formats: human and JSON.
package output

import (
	"fmt"
	"math"
	"strings"

	"kugl/internal/engine"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
)

// Formatter renders a query result for stdout.
type Formatter interface {
	FormatResult(*engine.Result) (string, error)
}

// NewFormatter creates a Formatter instance based on the given name.
// If no format is specified, defaults to human format.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatHuman:
		return humanFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'human' or 'json'", name)
	}
}

// normalize turns a float equal to its integer value into an integer,
// so results don't print trailing zeros or scientific notation.
func normalize(value any) any {
	if f, ok := value.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return int64(f)
	}
	return value
}
