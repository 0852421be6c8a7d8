package types

import (
	"encoding/json"
	"fmt"
	"unicode"

	"github.com/google/uuid"
)

// ID identifies an entity, edge, or trace record. Catalog entities keep the
// stable identifier supplied by the catalog (typically a slug such as
// "slack-post-message"); internally generated records use a UUID.
type ID string

// MaxIDLength bounds identifier length so ids stay usable as index keys
// and file names.
const MaxIDLength = 128

// NewID generates a new UUID v4 and returns it as an ID.
// It will never return an error as uuid.New() uses crypto/rand
// which panics on system-level failures (extremely rare).
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID validates a string as an identifier and returns it as an ID.
// Identifiers must be non-empty, at most MaxIDLength runes, and free of
// whitespace and control characters. UUIDs satisfy these rules.
func ParseID(s string) (ID, error) {
	id := ID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks that the ID is usable as a stable identifier.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("ID exceeds %d characters", MaxIDLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("ID contains whitespace or control characters: %q", string(id))
		}
	}
	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON implements the json.Marshaler interface.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// Null and empty inputs set the zero value; anything else is validated.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal ID: %w", err)
	}
	if s == "" {
		*id = ""
		return nil
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
