package webutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateHash creates a SHA-256 hash of the input string and returns it
// as a hexadecimal string.
func GenerateHash(data string) (string, error) {
	hasher := sha256.New()
	_, err := hasher.Write([]byte(data))
	if err != nil {
		return "", fmt.Errorf("failed to write data to hasher: %w", err)
	}
	// Sum returns the hash as a byte slice. Pass nil to allocate a new slice.
	hashBytes := hasher.Sum(nil)
	// Encode the byte slice into a hex string (64 characters for SHA-256).
	hashString := hex.EncodeToString(hashBytes)
	return hashString, nil
}

// GenerateRandomToken returns a hex-encoded token built from byteLen
// cryptographically random bytes. The resulting string is 2*byteLen
// characters long.
func GenerateRandomToken(byteLen int) (string, error) {
	if byteLen < 16 {
		return "", fmt.Errorf("token length %d is too short", byteLen)
	}
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
