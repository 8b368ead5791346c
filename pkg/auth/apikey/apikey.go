// Package apikey provides an API key authenticator that validates
// bearer tokens against a static key set using SHA-256 hashing and
// constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/loupelabs/loupe/pkg/auth"
)

// Entry binds a plaintext API key to the identity it authenticates.
type Entry struct {
	Key      string
	Identity auth.Identity
}

// Authenticator validates bearer tokens against a static key set.
// Keys are hashed at construction; plaintext keys are not retained.
type Authenticator struct {
	hashes     [][32]byte
	identities []auth.Identity
}

// New creates an API key authenticator from configured entries.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{
		hashes:     make([][32]byte, 0, len(entries)),
		identities: make([]auth.Identity, 0, len(entries)),
	}
	for _, e := range entries {
		a.hashes = append(a.hashes, sha256.Sum256([]byte(e.Key)))
		a.identities = append(a.identities, e.Identity)
	}
	return a
}

// Authenticate extracts the bearer token and validates it.
// Returns Yes if the key matches, No if a bearer token is present but
// unknown, Abstain if the request carries no bearer credentials.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	for i := range a.hashes {
		if subtle.ConstantTimeCompare(tokenHash[:], a.hashes[i][:]) == 1 {
			// Copy so callers cannot mutate the stored identity.
			id := a.identities[i]
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
