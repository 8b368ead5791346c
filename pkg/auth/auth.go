package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Decision represents the three possible outcomes of authentication.
type Decision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes Decision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique caller identifier (required, non-empty).
	Subject string

	// ServiceTier selects the rate limit bucket for this caller.
	ServiceTier string

	// Scopes lists the authorization scopes granted to the caller.
	Scopes []string

	// Claims carries additional provider-specific data, such as
	// non-standard JWT claims.
	Claims map[string]string
}

// HasScope reports whether the identity carries the given scope.
func (id *Identity) HasScope(scope string) bool {
	if id == nil {
		return false
	}
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// BearerToken extracts the bearer token from the request's Authorization
// header. ok is false when the header is missing or uses another scheme,
// which authenticators should treat as Abstain. A bearer header with an
// empty token returns ok=true with an empty string, which should be
// rejected as No.
func BearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}

// Chain evaluates authenticators in order using three-outcome voting.
type Chain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Use Yes for development (noop behavior) or No for production.
	DefaultDecision Decision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	// All abstained: use default.
	if c.DefaultDecision == Yes {
		return Result{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", ServiceTier: "default"},
		}
	}

	return Result{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}
