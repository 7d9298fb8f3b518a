package util

import (
	"testing"
	"time"
)

func TestJWTManagerGenerateAndParse(t *testing.T) {
	manager := NewJWTManager("top-secret", time.Minute)

	token, expiresAt, err := manager.Generate("ops@example.com", "Ops", true)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token to be non-empty")
	}
	if expiresAt.Before(time.Now()) {
		t.Fatalf("expected expiry in the future")
	}

	claims, err := manager.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Email != "ops@example.com" || claims.Subject != "ops@example.com" {
		t.Fatalf("unexpected identity claims %+v", claims)
	}
	if claims.Name != "Ops" || !claims.Admin {
		t.Fatalf("expected name and admin claims to be set")
	}
}

func TestJWTManagerParseExpiredToken(t *testing.T) {
	manager := NewJWTManager("secret", time.Minute)
	token, _, err := manager.Generate("ops@example.com", "", false)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	manager.now = func() time.Time { return time.Now().Add(time.Hour) }

	if _, err := manager.Parse(token); err == nil {
		t.Fatalf("expected parse error for expired token")
	}
}

func TestJWTManagerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewJWTManager("one", time.Minute).Generate("ops@example.com", "", true)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if _, err := NewJWTManager("two", time.Minute).Parse(token); err == nil {
		t.Fatalf("expected signature error")
	}
}
