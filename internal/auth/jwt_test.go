package auth

import (
	"testing"
	"time"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "qrattend-test"
)

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("user-1", "a@b.com", "student", testIssuer, testKey, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims, err := ParseToken(token, testKey, testIssuer)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@b.com" || claims.Role != "student" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if IsExpired(token) {
		t.Fatal("fresh token reported expired")
	}
}

func TestParseTokenWrongKey(t *testing.T) {
	token, err := IssueToken("user-1", "a@b.com", "admin", testIssuer, testKey, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken(token, "other-key", testIssuer); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenWrongIssuer(t *testing.T) {
	token, err := IssueToken("user-1", "a@b.com", "admin", "someone-else", testKey, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken(token, testKey, testIssuer); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenMalformed(t *testing.T) {
	for _, raw := range []string{"", "garbage", "a.b.c", "{\"not\":\"a jwt\"}"} {
		if _, err := ParseToken(raw, testKey, testIssuer); err != ErrInvalidToken {
			t.Fatalf("payload %q: expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestTokenExpiry(t *testing.T) {
	token, err := IssueToken("user-1", "a@b.com", "student", testIssuer, testKey, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken(token, testKey, testIssuer); err != ErrInvalidToken {
		t.Fatalf("expired token must not validate, got %v", err)
	}
	if !IsExpired(token) {
		t.Fatal("expired token reported valid")
	}
}

func TestIsExpiredMalformed(t *testing.T) {
	if !IsExpired("not-a-token") {
		t.Fatal("malformed token must count as expired")
	}
}

func TestIssueTokenRequiresUser(t *testing.T) {
	if _, err := IssueToken("", "a@b.com", "student", testIssuer, testKey, time.Hour); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
