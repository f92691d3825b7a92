// Package security provides secure random generation utilities
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string. Used for utterance and feature log ids.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSessionID returns a random UUIDv4 string.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateSecureKey creates a cryptographically secure random key and returns it as a hex string.
// Used to mint an ephemeral signing secret when none is configured.
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length/2) // Each byte becomes two hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
