package uuid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	u, err := NewRandom()
	require.NoError(t, err)
	assert.True(t, IsUUIDv7(u))
	assert.NotEqual(t, Nil, New())

	parsed, err := Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, parsed)
}

func TestShortHex(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{12}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := ShortHex(12)
		assert.Regexp(t, re, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, ShortHex(0), 32)
	assert.Len(t, ShortHex(64), 32)
}
