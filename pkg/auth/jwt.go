package auth

import (
	"context"
	"fmt"
	"net/http"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// JWTAuthenticator validates HMAC-signed JWT bearer tokens. The forwarded
// upstream token stays the raw JWT; validation only gates access to the
// gateway.
type JWTAuthenticator struct {
	secret   []byte
	issuer   string
	audience string
}

// JWTConfig holds the JWT authenticator configuration.
type JWTConfig struct {
	// Secret is the HMAC signing secret (required).
	Secret string
	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string
	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt auth requires a secret")
	}
	return &JWTAuthenticator{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

// Authenticate validates the bearer token as an HMAC-signed JWT.
// Abstains when no bearer token is present; tokens that do not even look
// like JWTs are also left to the next authenticator.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) Result {
	token := bearerValue(r)
	if token == "" {
		return Result{Decision: Abstain}
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.audience))
	}

	claims := jwtlib.MapClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Result{Decision: No, Err: ErrUnauthenticated}
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return Result{Decision: No, Err: ErrUnauthenticated}
	}

	return Result{Decision: Yes, Subject: subject}
}
