package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/lakonic/taskdeck/webutil"
)

// MinPasswordLength is the only strength requirement enforced on passwords.
const MinPasswordLength = 6

// HashPassword produces the stored password digest.
func HashPassword(password string) (string, error) {
	digest, err := webutil.GenerateHash(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return digest, nil
}

// VerifyPassword reports whether the candidate password matches the stored
// digest. The comparison is constant time.
func VerifyPassword(password, storedDigest string) bool {
	candidate, err := webutil.GenerateHash(password)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedDigest)) == 1
}
