package u2m

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// challengeS256 derives the PKCE code challenge from a code verifier using
// the S256 method: BASE64URL(SHA256(ASCII(code_verifier))). The mapping is
// deterministic and one-way; the verifier cannot be recovered from the
// challenge.
func challengeS256(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// generateState generates a random state nonce for CSRF protection of the
// authorization redirect.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
