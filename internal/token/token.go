// Package token implements the compact signed session token used for admin
// auth: two base64url JSON segments plus an HMAC-SHA256 signature segment,
// joined by dots. Expiry is carried in the payload but deliberately not
// enforced by Verify; callers check Claims.Expired and report the distinct
// ErrTokenExpired so an expired token is distinguishable from a forged one.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformedPayload = errors.New("malformed token payload")
	ErrTokenExpired     = errors.New("token expired")
)

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Exp      int64  `json:"exp,omitempty"` // unix seconds
}

// Expired reports whether the claims carry an expiry at or before now.
// Claims without an exp field never expire.
func (c *Claims) Expired(now time.Time) bool {
	return c.Exp != 0 && c.Exp <= now.Unix()
}

func encodeSegment(v interface{}) string {
	data, _ := json.Marshal(v)
	return base64.RawURLEncoding.EncodeToString(data)
}

func signature(signingInput string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingInput))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Sign serializes the claims into a three-segment token signed with secret.
func Sign(claims Claims, secret string) string {
	h := encodeSegment(header{Alg: "HS256", Typ: "JWT"})
	p := encodeSegment(claims)
	return h + "." + p + "." + signature(h+"."+p, secret)
}

// Verify checks structure and signature and returns the decoded claims.
// It does NOT enforce expiry; see Claims.Expired.
func Verify(tok string, secret string) (*Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	expected := signature(parts[0]+"."+parts[1], secret)
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return nil, ErrInvalidSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedPayload
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrMalformedPayload
	}
	return &claims, nil
}
