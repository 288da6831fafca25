package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID is an opaque, sortable identifier used for runs and steps.
type ID string

func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID generates a new ID and panics on failure.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func ParseID(s string) (ID, error) {
	if _, err := ksuid.Parse(s); err != nil {
		return "", fmt.Errorf("parsing id %q: %w", s, err)
	}
	return ID(s), nil
}

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}
