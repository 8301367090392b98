package output

import (
	"fmt"
	"strings"

	"kugl/internal/engine"
)

type humanFormatter struct{}

// FormatResult renders rows as a plain aligned table with a header row,
// nulls as blanks.
func (humanFormatter) FormatResult(r *engine.Result) (string, error) {
	if r == nil || len(r.Columns) == 0 {
		return "", nil
	}
	cells := make([][]string, 0, len(r.Rows)+1)
	cells = append(cells, r.Columns)
	for _, row := range r.Rows {
		line := make([]string, len(row))
		for i, value := range row {
			line[i] = renderValue(value)
		}
		cells = append(cells, line)
	}

	widths := make([]int, len(r.Columns))
	for _, line := range cells {
		for i, cell := range line {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for _, line := range cells {
		for i, cell := range line {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(line)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(fmt.Sprintf("%-*s", widths[i], cell))
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func renderValue(value any) string {
	switch v := normalize(value).(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
