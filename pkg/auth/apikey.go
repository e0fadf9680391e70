package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// APIKeyAuthenticator validates bearer tokens against a static key list
// using SHA-256 hashing and constant-time comparison. Keys are hashed at
// construction; plaintext keys are not retained.
type APIKeyAuthenticator struct {
	keys []apiKeyEntry
}

type apiKeyEntry struct {
	hash    [32]byte
	subject string
}

// APIKey is the configuration form of one accepted key.
type APIKey struct {
	Key     string
	Subject string
}

// NewAPIKeyAuthenticator creates an authenticator from the accepted keys.
func NewAPIKeyAuthenticator(keys []APIKey) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{}
	for _, k := range keys {
		a.keys = append(a.keys, apiKeyEntry{
			hash:    sha256.Sum256([]byte(k.Key)),
			subject: k.Subject,
		})
	}
	return a
}

// Authenticate validates the bearer token against the key list.
// Abstains when no bearer token is present.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, r *http.Request) Result {
	token := bearerValue(r)
	if token == "" {
		return Result{Decision: Abstain}
	}

	tokenHash := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.hash[:]) == 1 {
			return Result{Decision: Yes, Subject: entry.subject}
		}
	}

	return Result{Decision: No, Err: ErrUnauthenticated}
}
