package models

import (
	"encoding/json"
	"fmt"
)

// Patch is a partial update keyed by JSON column name.
type Patch map[string]any

// Apply merges p into a copy of v using the JSON field names of T.
func Apply[T any](v T, p Patch) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("models: marshal: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, fmt.Errorf("models: unmarshal: %w", err)
	}
	for k, val := range p {
		fields[k] = val
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("models: marshal patch: %w", err)
	}
	if err := json.Unmarshal(merged, &out); err != nil {
		return out, fmt.Errorf("models: apply patch: %w", err)
	}
	return out, nil
}
