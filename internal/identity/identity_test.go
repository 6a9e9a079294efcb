package identity

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUserIDKeepsValidID(t *testing.T) {
	r := httptest.NewRequest("POST", "/skill", nil)
	if got := UserID(" abc123 ", r); got != "abc123" {
		t.Fatalf("got %q", got)
	}
}

func TestUserIDDerivesFromAddress(t *testing.T) {
	r1 := httptest.NewRequest("POST", "/skill", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	r2 := httptest.NewRequest("POST", "/skill", nil)
	r2.RemoteAddr = "10.0.0.1:5678"
	r3 := httptest.NewRequest("POST", "/skill", nil)
	r3.RemoteAddr = "10.0.0.2:1234"

	a, b, c := UserID("", r1), UserID("bad id/..", r2), UserID("", r3)
	if !strings.HasPrefix(a, "anon_") {
		t.Fatalf("expected anon prefix, got %q", a)
	}
	if a != b {
		t.Fatalf("same address should map to one key: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("different addresses should not share a key")
	}
}

func TestUserIDWithoutRequest(t *testing.T) {
	if got := UserID("", nil); got != Anonymous {
		t.Fatalf("got %q", got)
	}
}
