package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientValidatesConstruction(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("", "token"); err == nil {
		t.Fatal("expected empty base url to fail")
	}
	if _, err := NewClient("https://rest.example", ""); err == nil {
		t.Fatal("expected empty token to fail")
	}
}

// TestClientEnrichSendsAuthorizedRequest verifies the enrichment call shape
// against a loopback server.
func TestClientEnrichSendsAuthorizedRequest(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/", "secret-token")
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	if err := client.Enrich(context.Background()); err != nil {
		t.Fatalf("enrich failed: %v", err)
	}
	if gotPath != "/users/@me/settings" {
		t.Fatalf("path = %q, want /users/@me/settings", gotPath)
	}
	if gotAuth != "secret-token" {
		t.Fatalf("authorization = %q, want the raw token", gotAuth)
	}
}

// TestClientEnrichRejectsErrorStatus verifies non-2xx responses surface as
// errors.
func TestClientEnrichRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "secret-token")
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	err = client.Enrich(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("enrich error = %v, want status failure", err)
	}
}

// TestClientEnrichHonorsContextCancellation verifies the limiter wait aborts
// with the caller's context.
func TestClientEnrichHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	client, err := NewClient("https://rest.example", "secret-token")
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.Enrich(ctx); err == nil {
		t.Fatal("expected canceled context to fail")
	}
}
