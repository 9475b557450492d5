package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// NewCodeVerifier returns a 64 character PKCE verifier built from two random UUIDs
func NewCodeVerifier() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// CodeChallenge derives the S256 challenge for a verifier
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
