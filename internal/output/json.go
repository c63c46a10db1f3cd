package output

import (
	"encoding/json"
)

func renderJSON(t Table) (string, error) {
	payload := t.Records
	if payload == nil {
		rows := make([]map[string]any, 0, len(t.Rows))
		for _, row := range t.Rows {
			obj := make(map[string]any, len(t.Header))
			for i, h := range t.Header {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			rows = append(rows, obj)
		}
		payload = rows
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
