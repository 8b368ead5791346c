// Package jwtauth provides a JWT authenticator that validates HMAC-signed
// bearer tokens against a shared secret.
//
// Tokens must carry an expiry and a subject. Issuer and audience are
// validated when configured. Custom string claims are exposed on the
// resulting identity.
package jwtauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/loupelabs/loupe/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC signing secret (required).
	Secret []byte

	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// TierClaim is the claim used for the identity's service tier.
	// Default: "tier".
	TierClaim string

	// ScopesClaim is the claim used for authorization scopes. Default:
	// "scope". The value can be a space-separated string or a JSON array.
	ScopesClaim string
}

func (c *Config) applyDefaults() {
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates HMAC-signed JWT bearer tokens.
type Authenticator struct {
	config Config
	opts   []jwtlib.ParserOption
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{config: cfg, opts: opts}
}

// registeredClaims are excluded from the identity's custom claim map.
var registeredClaims = map[string]bool{
	"iss": true, "sub": true, "aud": true,
	"exp": true, "nbf": true, "iat": true, "jti": true,
}

// Authenticate extracts a bearer token from the Authorization header and
// validates it as an HMAC-signed JWT.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad
//     signature, missing subject)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.config.Secret, nil
	}, a.opts...)
	if err != nil {
		slog.Debug("jwt validation failed", "error", err)
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid token: %w", err),
		}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid token claims")}
	}

	subject := claimString(claims, "sub")
	if subject == "" {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("token missing sub claim")}
	}

	identity := &auth.Identity{
		Subject:     subject,
		ServiceTier: claimString(claims, a.config.TierClaim),
		Scopes:      extractScopes(claims, a.config.ScopesClaim),
	}

	// Surface custom string claims on the identity.
	for key, val := range claims {
		if registeredClaims[key] || key == a.config.TierClaim || key == a.config.ScopesClaim {
			continue
		}
		if s, ok := val.(string); ok {
			if identity.Claims == nil {
				identity.Claims = make(map[string]string)
			}
			identity.Claims[key] = s
		}
	}

	return auth.Result{Decision: auth.Yes, Identity: identity}
}

// claimString extracts a string value from JWT claims. Returns empty
// string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// extractScopes extracts scopes from JWT claims. The claim can be either
// a space-separated string or a JSON array of strings.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch val := claims[key].(type) {
	case string:
		parts := strings.Fields(val)
		if len(parts) == 0 {
			return nil
		}
		return parts
	case []interface{}:
		var scopes []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}
