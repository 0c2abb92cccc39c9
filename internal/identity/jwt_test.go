package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	tok, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected subject alice, got %s", claims.Subject)
	}
}

func TestLabelForFallsBackToAnonymousWithoutToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/client", nil)
	if got := m.LabelFor(r, "anonymous-1"); got != "anonymous-1" {
		t.Fatalf("expected anonymous fallback, got %s", got)
	}
}

func TestLabelForFallsBackToAnonymousOnInvalidToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/client?token=not-a-real-token", nil)
	if got := m.LabelFor(r, "anonymous-1"); got != "anonymous-1" {
		t.Fatalf("expected anonymous fallback for an invalid token, got %s", got)
	}
}

func TestLabelForUsesVerifiedSubject(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	tok, err := m.Issue("bob")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/client?token="+tok, nil)
	if got := m.LabelFor(r, "anonymous-1"); got != "bob" {
		t.Fatalf("expected subject bob, got %s", got)
	}
}
