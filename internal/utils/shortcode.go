package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	// Generated codes start short and widen once collisions pile up.
	initialCodeLength = 4
	widenedCodeLength = 5

	// AliasMinLength and AliasMaxLength bound custom aliases.
	AliasMinLength = 3
	AliasMaxLength = 20
)

// GenerateCode returns a random short code of the given length drawn from the
// base62 alphabet. Uniqueness is not guaranteed here; callers must check
// against the link store before claiming a code.
func GenerateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(base62Chars)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		b.WriteByte(base62Chars[n.Int64()])
	}
	return b.String(), nil
}

// CodeLengthForAttempt returns the code length to use for the given retry
// attempt. Attempt 0 is the first try; after five collisions the code space
// widens from 4 to 5 characters, which shrinks the collision probability
// enough that the retry loop needs no cap.
func CodeLengthForAttempt(attempt int) int {
	if attempt > 5 {
		return widenedCodeLength
	}
	return initialCodeLength
}

// ValidateAlias reports whether a custom alias is acceptable: 3-20 characters,
// each alphanumeric, '-', or '_'.
func ValidateAlias(alias string) bool {
	if len(alias) < AliasMinLength || len(alias) > AliasMaxLength {
		return false
	}
	for _, c := range alias {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// GenerateID returns a UUIDv4 string for link and click primary keys.
func GenerateID() string {
	return uuid.NewString()
}
