package device

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Device secrets authenticate WebSocket connections. Only the SHA-256
// digest is stored; the plaintext is shown once at registration and
// provisioned to the device.

const secretBytes = 32

// GenerateSecret returns a new random device secret as a hex string.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret returns the SHA-256 hex digest of a plaintext secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifySecret checks a plaintext secret against a stored hash using a
// constant-time comparison. Returns ErrInvalidSecret on mismatch.
func VerifySecret(secret, storedHash string) error {
	if secret == "" || storedHash == "" {
		return ErrInvalidSecret
	}
	computed := HashSecret(secret)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) != 1 {
		return ErrInvalidSecret
	}
	return nil
}
