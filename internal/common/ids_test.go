package common

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomString(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "signing key", length: 48},
		{name: "single", length: 1},
		{name: "zero", length: 0, wantErr: true},
		{name: "negative", length: -1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RandomString(tt.length)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.length)
			for _, c := range got {
				assert.True(t, strings.ContainsRune(CHARS, c), "invalid character %q", c)
			}
		})
	}

	a, _ := RandomString(32)
	b, _ := RandomString(32)
	assert.NotEqual(t, a, b)
}

func TestSecureRandomInt(t *testing.T) {
	for _, max := range []int{0, -1, math.MaxInt32 + 1} {
		_, err := secureRandomInt(max)
		assert.Error(t, err, "max=%d", max)
	}
	for i := 0; i < 100; i++ {
		got, err := secureRandomInt(7)
		require.NoError(t, err)
		assert.True(t, got >= 0 && got < 7)
	}
}

func TestOrderCode(t *testing.T) {
	day := time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "PDLF-20250309-0007", OrderCode(day, 7))
	assert.Equal(t, "PDLF-20250309-12345", OrderCode(day, 12345))
}
