// Package common holds small helpers shared by the client and the reference backend.
package common

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	LETTERS = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DIGITS  = "0123456789"
	CHARS   = LETTERS + LOWER + DIGITS
	LOWER   = "abcdefghijklmnopqrstuvwxyz"

	// OrderCodePrefix prefixes every order code.
	OrderCodePrefix = "PDLF"
)

// secureRandomInt returns a uniformly distributed number in [0, max).
func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("max must be positive, got %d", max)
	}
	if max > math.MaxInt32 {
		return 0, fmt.Errorf("max too large: %d", max)
	}

	// largest multiple of max that fits, to avoid modulo bias
	limit := (math.MaxUint64 / uint64(max)) * uint64(max)

	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("failed to generate random bytes: %w", err)
		}
		n := binary.BigEndian.Uint64(buf[:])
		if n < limit {
			return int(n % uint64(max)), nil
		}
	}
}

// RandomString returns a random alphanumeric string of the given length.
func RandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}
	result := make([]byte, length)
	for i := range result {
		idx, err := secureRandomInt(len(CHARS))
		if err != nil {
			return "", fmt.Errorf("failed to generate character at position %d: %w", i, err)
		}
		result[i] = CHARS[idx]
	}
	return string(result), nil
}

// OrderCode formats the public code of an order: PDLF-YYYYMMDD-NNNN, where the date is the
// local shop date and NNNN the zero-padded order number.
func OrderCode(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", OrderCodePrefix, day.Format("20060102"), seq)
}
