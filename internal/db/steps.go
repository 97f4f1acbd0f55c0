package db

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseSteps normalizes a stored step list into an ordered slice of strings.
// The generator has written both a JSON array and a JSON string holding that
// array, so both are accepted here and nowhere else.
func ParseSteps(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	switch raw[0] {
	case '[':
		var steps []string
		if err := json.Unmarshal(raw, &steps); err != nil {
			return nil, fmt.Errorf("parse steps: %w", err)
		}
		if steps == nil {
			steps = []string{}
		}
		return steps, nil
	case '"':
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("parse steps: %w", err)
		}
		nested := bytes.TrimSpace([]byte(inner))
		if len(nested) > 0 && nested[0] == '"' {
			return nil, fmt.Errorf("parse steps: doubly encoded string")
		}
		return ParseSteps(nested)
	default:
		return nil, fmt.Errorf("parse steps: unexpected %q", raw[0])
	}
}

// EncodeSteps is the canonical stored form: a JSON array.
func EncodeSteps(steps []string) (string, error) {
	if steps == nil {
		steps = []string{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
