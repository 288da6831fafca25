package postgres

import (
	"encoding/json"
	"fmt"
)

// ToJSONB marshals a payload for a JSONB column, mapping nil to SQL NULL.
func ToJSONB(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling jsonb: %w", err)
	}
	return b, nil
}
