package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIP(t *testing.T) {
	h := HashIP("203.0.113.9", "salt")

	assert.Len(t, h, 64)
	assert.NotContains(t, h, "203.0.113.9")
	assert.Equal(t, h, HashIP("203.0.113.9", "salt"), "hash must be deterministic")
	assert.NotEqual(t, h, HashIP("203.0.113.9", "other-salt"), "salt must change the hash")
	assert.NotEqual(t, h, HashIP("203.0.113.10", "salt"))
}
