package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskField(t *testing.T) {
	task := &Task{
		CustomFields: []CustomField{
			{ID: "f1", Name: "Agent Record ID", Value: "A1"},
			{ID: "f2", Name: "Publish Date", Value: float64(1788271200000)},
			{ID: "f3", Name: "Empty Field", Value: "  "},
			{ID: "f4", Name: "Nil Field", Value: nil},
		},
	}

	t.Run("Should look up fields case-insensitively", func(t *testing.T) {
		v, ok := task.Field("agent record id")
		assert.True(t, ok)
		assert.Equal(t, "A1", v)
	})
	t.Run("Should stringify epoch-ms numbers without exponent or fraction", func(t *testing.T) {
		v, ok := task.Field("Publish Date")
		assert.True(t, ok)
		assert.Equal(t, "1788271200000", v)
	})
	t.Run("Should treat blank and nil values as absent", func(t *testing.T) {
		_, ok := task.Field("Empty Field")
		assert.False(t, ok)
		_, ok = task.Field("Nil Field")
		assert.False(t, ok)
	})
	t.Run("Should report unknown fields as absent", func(t *testing.T) {
		_, ok := task.Field("Not There")
		assert.False(t, ok)
	})
	t.Run("Should resolve field ids by name", func(t *testing.T) {
		id, ok := task.FieldID("publish date")
		assert.True(t, ok)
		assert.Equal(t, "f2", id)
	})
}
