package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP returns a salted one-way hash of a client IP. Only this hash is ever
// persisted; the raw IP must not reach either store.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(ip + "|" + salt))
	return hex.EncodeToString(sum[:])
}
