// Package auth verifies the bearer tokens the authentication service issues.
// The engine never mints tokens; it only checks signature, expiry and the
// access-token type claim, then extracts the user ID.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the signature was valid but the token is past exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrWrongTokenType means the token is signed but is not an access token
	// (e.g. a refresh token was presented).
	ErrWrongTokenType = errors.New("not an access token")
)

type claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the token and returns the subject user ID.
func (v *Verifier) Verify(token string) (string, error) {
	var c claims
	t, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !t.Valid {
		return "", ErrTokenInvalid
	}
	if c.Type != "access" {
		return "", ErrWrongTokenType
	}
	if c.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrTokenInvalid)
	}
	return c.Subject, nil
}
