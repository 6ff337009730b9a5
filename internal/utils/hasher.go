package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Hash generates a SHA-256 hash of the input string
func Hash(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// NewPostID returns "post-<unix>-<8 hex>" where the suffix hashes parts.
func NewPostID(now time.Time, parts ...string) string {
	hasher := sha256.New()
	for _, p := range parts {
		hasher.Write([]byte(p))
		hasher.Write([]byte{0})
	}
	sum := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("post-%d-%s", now.Unix(), sum[:8])
}
