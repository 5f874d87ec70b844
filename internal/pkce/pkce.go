// Package pkce implements the Proof Key for Code Exchange helpers (RFC 7636) used by the login flow.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// VerifierLength is the number of characters in a generated verifier.
const VerifierLength = 64

// Method is the only challenge method this package produces.
const Method = "S256"

// unreserved is the RFC 3986 unreserved character set.
const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

var randSource = rand.Reader

// GenerateVerifier returns [VerifierLength] characters drawn uniformly from the unreserved set.
//
// An error means no secure random source is available; callers cannot authenticate without one.
func GenerateVerifier() (string, error) {
	limit := big.NewInt(int64(len(unreserved)))
	b := make([]byte, VerifierLength)
	for i := range b {
		n, err := rand.Int(randSource, limit)
		if err != nil {
			return "", fmt.Errorf("secure random source unavailable: %w", err)
		}
		b[i] = unreserved[n.Int64()]
	}
	return string(b), nil
}

// DeriveChallenge returns base64url(SHA-256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
