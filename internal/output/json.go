package output

import (
	"encoding/json"

	"kugl/internal/engine"
)

type jsonFormatter struct{}

// FormatResult renders rows as a JSON array of column-keyed objects.
func (jsonFormatter) FormatResult(r *engine.Result) (string, error) {
	records := []map[string]any{}
	if r != nil {
		for _, row := range r.Rows {
			record := make(map[string]any, len(r.Columns))
			for i, name := range r.Columns {
				if i < len(row) {
					record[name] = normalize(row[i])
				}
			}
			records = append(records, record)
		}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
