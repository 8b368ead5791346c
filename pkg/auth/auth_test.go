package auth

import (
	"context"
	"net/http"
	"testing"
)

// mockAuthn is a test authenticator with a fixed result.
type mockAuthn struct {
	result Result
}

func (m *mockAuthn) Authenticate(_ context.Context, _ *http.Request) Result {
	return m.result
}

func TestChain_FirstYesStops(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "alice"}}},
			&mockAuthn{result: Result{Decision: No, Err: ErrUnauthenticated}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != Yes {
		t.Errorf("Decision = %d, want Yes", result.Decision)
	}
	if result.Identity.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "alice")
	}
}

func TestChain_FirstNoStops(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: No, Err: ErrUnauthenticated}},
			&mockAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "bob"}}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != No {
		t.Errorf("Decision = %d, want No", result.Decision)
	}
}

func TestChain_AllAbstain_DefaultReject(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Abstain}},
			&mockAuthn{result: Result{Decision: Abstain}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != No {
		t.Errorf("Decision = %d, want No (default reject)", result.Decision)
	}
}

func TestChain_AllAbstain_DefaultAccept(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Abstain}},
		},
		DefaultDecision: Yes,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != Yes {
		t.Errorf("Decision = %d, want Yes (default accept)", result.Decision)
	}
	if result.Identity.Subject != "anonymous" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "anonymous")
	}
}

func TestChain_Empty_DefaultReject(t *testing.T) {
	chain := &Chain{DefaultDecision: No}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != No {
		t.Errorf("Decision = %d, want No (empty chain)", result.Decision)
	}
}

func TestChain_AbstainThenYes(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&mockAuthn{result: Result{Decision: Abstain}},
			&mockAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "jwt-user"}}},
		},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("GET", "/", nil)
	result := chain.Authenticate(context.Background(), r)

	if result.Decision != Yes {
		t.Errorf("Decision = %d, want Yes", result.Decision)
	}
	if result.Identity.Subject != "jwt-user" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "jwt-user")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{"no header", "", "", false},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", false},
		{"bearer token", "Bearer sk-abc", "sk-abc", true},
		{"empty bearer", "Bearer ", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := http.NewRequest("GET", "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			token, ok := BearerToken(r)
			if ok != tc.wantOK {
				t.Errorf("ok = %v, want %v", ok, tc.wantOK)
			}
			if token != tc.wantToken {
				t.Errorf("token = %q, want %q", token, tc.wantToken)
			}
		})
	}
}

func TestIdentity_HasScope(t *testing.T) {
	id := &Identity{Subject: "alice", Scopes: []string{"read", "write"}}
	if !id.HasScope("write") {
		t.Error("expected scope write")
	}
	if id.HasScope("admin") {
		t.Error("did not expect scope admin")
	}

	var nilID *Identity
	if nilID.HasScope("read") {
		t.Error("nil identity should have no scopes")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	// No identity set.
	if IdentityFromContext(ctx) != nil {
		t.Error("expected nil identity from empty context")
	}

	// Set and retrieve.
	id := &Identity{Subject: "alice"}
	ctx = SetIdentity(ctx, id)
	got := IdentityFromContext(ctx)
	if got == nil || got.Subject != "alice" {
		t.Errorf("got %v, want alice", got)
	}
}
