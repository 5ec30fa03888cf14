package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

const accessTokenBytes = 32

// GenerateAccessToken returns an unguessable URL-safe bearer token.
func GenerateAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashAccessToken is the digest stored in place of the token.
func HashAccessToken(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
