package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	t.Run("Should name the missing field", func(t *testing.T) {
		err := NewValidationError("Publish Date")
		assert.Equal(t, "missing required field: Publish Date", err.Error())
	})
}

func TestExternalServiceError(t *testing.T) {
	t.Run("Should truncate oversized response bodies", func(t *testing.T) {
		err := NewExternalServiceError("social", 502, strings.Repeat("x", 2000))
		assert.Contains(t, err.Body, "(truncated)")
		assert.LessOrEqual(t, len(err.Body), 512+len("...(truncated)"))
	})
	t.Run("Should keep small bodies intact", func(t *testing.T) {
		err := NewExternalServiceError("social", 429, "slow down")
		assert.Equal(t, "slow down", err.Body)
		assert.Equal(t, "social returned status 429: slow down", err.Error())
	})
}

func TestSkipError(t *testing.T) {
	t.Run("Should unwrap through error chains", func(t *testing.T) {
		wrapped := fmt.Errorf("running gate: %w", NewSkipError("wrong_status", "Open"))
		se, ok := IsSkip(wrapped)
		require.True(t, ok)
		assert.Equal(t, "wrong_status", se.Reason)
		assert.Equal(t, "Open", se.Actual)
	})
	t.Run("Should not match unrelated errors", func(t *testing.T) {
		_, ok := IsSkip(fmt.Errorf("boom"))
		assert.False(t, ok)
	})
}
