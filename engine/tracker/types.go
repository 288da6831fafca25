package tracker

import (
	"fmt"
	"strings"
)

// Task is the tracker's task detail payload, reduced to the fields the
// pipelines consume.
type Task struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       TaskStatus    `json:"status"`
	List         ListRef       `json:"list"`
	CustomFields []CustomField `json:"custom_fields"`
}

type TaskStatus struct {
	Status string `json:"status"`
}

type ListRef struct {
	ID string `json:"id"`
}

// CustomField values come back untyped from the tracker API.
type CustomField struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Field returns the stringified value of a custom field looked up
// case-insensitively by name. Empty values count as absent.
func (t *Task) Field(name string) (string, bool) {
	for i := range t.CustomFields {
		f := &t.CustomFields[i]
		if !strings.EqualFold(f.Name, name) {
			continue
		}
		s := stringifyFieldValue(f.Value)
		if s == "" {
			return "", false
		}
		return s, true
	}
	return "", false
}

// FieldID returns the id of a custom field by case-insensitive name.
func (t *Task) FieldID(name string) (string, bool) {
	for i := range t.CustomFields {
		if strings.EqualFold(t.CustomFields[i].Name, name) {
			return t.CustomFields[i].ID, true
		}
	}
	return "", false
}

func stringifyFieldValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		// JSON numbers decode as float64; epoch-ms timestamps must not
		// pick up an exponent or fraction.
		return strings.TrimSuffix(fmt.Sprintf("%.0f", val), ".")
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}
