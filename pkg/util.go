package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"unsafe"
)

// BytesToString converts a byte slice to a string without copying.
// The caller must not modify buf afterwards.
func BytesToString(buf []byte) string {
	return *(*string)(unsafe.Pointer(&buf))
}

// GenerateRandomString returns a URL-safe random string of length n,
// suitable for session tokens.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid random string length: %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf)[:n], nil
}
