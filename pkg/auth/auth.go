// Package auth provides optional inbound authentication in front of the
// gateway. Whatever mode is active, the raw bearer value is forwarded
// verbatim to the upstream; the authenticators only decide whether the
// caller may use this gateway at all.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision represents the three possible outcomes of authentication.
type Decision int

const (
	// Yes means credentials are valid. The chain stops and the request
	// proceeds.
	Yes Decision = iota

	// No means credentials are present but invalid. The chain stops and
	// the request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials
	// type. The chain continues to the next authenticator.
	Abstain
)

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision Decision
	Subject  string // populated only when Decision == Yes
	Err      error  // populated only when Decision == No
}

// Authenticator examines request credentials and returns a three-outcome
// vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// ErrUnauthenticated is returned by authenticators rejecting a request.
var ErrUnauthenticated = errors.New("authentication required")

// Chain evaluates authenticators in order using three-outcome voting.
type Chain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain. Yes keeps
	// the gateway open (pass-through mode), No closes it.
	DefaultDecision Decision
}

// Authenticate runs the chain, stopping on the first Yes or No.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return Result{Decision: Yes, Subject: "anonymous"}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// bearerValue extracts the Bearer token from a request, or empty string.
func bearerValue(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}
