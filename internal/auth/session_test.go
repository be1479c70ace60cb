package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionManager_IssueAndParse(t *testing.T) {
	t.Parallel()

	m := NewSessionManager("jwt-secret", 15*time.Minute)

	token, err := m.Issue(42)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	session, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if session.UserID != 42 {
		t.Errorf("UserID = %d, want 42", session.UserID)
	}
	if session.TokenID == "" {
		t.Error("expected a token id")
	}
}

func TestSessionManager_Expired(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewSessionManager("jwt-secret", time.Minute)
	m.SetClock(func() time.Time { return issuedAt })

	token, err := m.Issue(1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	m.SetClock(func() time.Time { return issuedAt.Add(2 * time.Minute) })
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession for expired token, got %v", err)
	}
}

func TestSessionManager_Rejects(t *testing.T) {
	t.Parallel()

	m := NewSessionManager("jwt-secret", time.Hour)
	other := NewSessionManager("other-secret", time.Hour)
	foreign, _ := other.Issue(1)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).
		SignedString([]byte("jwt-secret"))
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "abc",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("jwt-secret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("jwt-secret"))

	tests := map[string]string{
		"garbage":        "not-a-jwt",
		"other secret":   foreign,
		"missing exp":    noExp,
		"bad subject":    badSubject,
		"wrong algorithm": hs512,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := m.Parse(token); !errors.Is(err, ErrInvalidSession) {
				t.Errorf("expected ErrInvalidSession, got %v", err)
			}
		})
	}
}
