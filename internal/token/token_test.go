package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	claims := Claims{Username: "admin", Role: "admin", Exp: time.Now().Add(time.Hour).Unix()}
	tok := Sign(claims, "test-secret")

	if strings.Count(tok, ".") != 2 {
		t.Fatalf("expected 3 segments, got %q", tok)
	}

	got, err := Verify(tok, "test-secret")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.Username != "admin" || got.Role != "admin" || got.Exp != claims.Exp {
		t.Errorf("claims mismatch: %+v", got)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	tok := Sign(Claims{Username: "admin", Role: "admin"}, "test-secret")
	parts := strings.Split(tok, ".")

	// Flip a character in the payload segment.
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := Verify(tampered, "test-secret"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok := Sign(Claims{Username: "admin"}, "secret-a")
	if _, err := Verify(tok, "secret-b"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	cases := []string{"", "abc", "a.b", "a.b.c.d"}
	for _, tok := range cases {
		if _, err := Verify(tok, "s"); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("token %q: expected ErrMalformedToken, got %v", tok, err)
		}
	}
}

func TestClaims_Expired(t *testing.T) {
	now := time.Now()

	t.Run("future exp not expired", func(t *testing.T) {
		c := Claims{Exp: now.Add(time.Minute).Unix()}
		if c.Expired(now) {
			t.Error("future exp reported expired")
		}
	})

	t.Run("exp one second ago is expired", func(t *testing.T) {
		c := Claims{Exp: now.Add(-time.Second).Unix()}
		if !c.Expired(now) {
			t.Error("past exp not reported expired")
		}
	})

	t.Run("exp equal to now is expired", func(t *testing.T) {
		c := Claims{Exp: now.Unix()}
		if !c.Expired(now) {
			t.Error("exp == now should count as expired")
		}
	})

	t.Run("zero exp never expires", func(t *testing.T) {
		c := Claims{}
		if c.Expired(now) {
			t.Error("zero exp should not expire")
		}
	})
}
