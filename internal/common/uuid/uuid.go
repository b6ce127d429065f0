// Package uuid wraps github.com/google/uuid. Request IDs are time-ordered UUIDv7 values;
// short hex identifiers are derived from random UUIDv4 values.
package uuid

import (
	"encoding/hex"

	"github.com/google/uuid"
)

type UUID = uuid.UUID

// NewRandom returns a new UUIDv7.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// New returns a new UUIDv7 and panics if the random source fails.
func New() UUID {
	u, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return u
}

func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsUUIDv7 reports whether id is a version 7 UUID.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}

// ShortHex returns the first n hex digits of a random UUIDv4, at most 32.
func ShortHex(n int) string {
	u := uuid.New()
	s := hex.EncodeToString(u[:])
	if n <= 0 || n > len(s) {
		return s
	}
	return s[:n]
}

var Nil = uuid.Nil
