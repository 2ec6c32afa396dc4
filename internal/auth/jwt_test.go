package auth

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	m := NewJWTManager([]byte("test-secret"), LinkTokenDuration)

	token, err := m.Issue("user-1", "U123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.LineUserID != "U123" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl <= 14*time.Minute || ttl > LinkTokenDuration {
		t.Errorf("unexpected expiry in %v", ttl)
	}
}

func TestValidateRejects(t *testing.T) {
	m := NewJWTManager([]byte("test-secret"), LinkTokenDuration)
	other := NewJWTManager([]byte("other-secret"), LinkTokenDuration)
	expired := NewJWTManager([]byte("test-secret"), -time.Minute)

	foreign, _ := other.Issue("user-1", "U123")
	stale, _ := expired.Issue("user-1", "U123")
	anonymous, _ := m.Issue("user-1", "")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong key", foreign},
		{"expired", stale},
		{"no line user", anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("channel-secret")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	b, _ := DeriveKey("channel-secret")
	c, _ := DeriveKey("another-secret")

	if len(a) != 32 {
		t.Errorf("key length = %d, want 32", len(a))
	}
	if !bytes.Equal(a, b) {
		t.Error("derivation is not deterministic")
	}
	if bytes.Equal(a, c) {
		t.Error("different secrets derived the same key")
	}
	if bytes.Equal(a, []byte("channel-secret")) {
		t.Error("key equals the input secret")
	}
	if _, err := DeriveKey(""); err == nil {
		t.Error("expected error for empty secret")
	}
}
