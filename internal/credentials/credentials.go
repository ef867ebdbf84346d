// Package credentials reads the bearer token used against the remote API from a
// persisted credential store.
package credentials

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential indicates there is no usable token: none stored, or a JWT
// whose exp claim has passed.
var ErrNoCredential = errors.New("no credential available")

// Source yields the current bearer token.
type Source interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops any cached copy so the next Token call re-reads the store.
	Invalidate()
}

// Static is a fixed token, typically from a flag or environment variable.
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	return usable(string(s), time.Now())
}

func (s Static) Invalidate() {}

// usable trims tok and rejects it when empty or an expired JWT.
func usable(tok string, now time.Time) (string, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", ErrNoCredential
	}
	if Expired(tok, now) {
		return "", ErrNoCredential
	}
	return tok, nil
}

// Expired reports whether tok is a JWT whose exp is at or before now. The
// signature is not verified; the server remains the authority. Opaque tokens
// and JWTs without exp never expire here.
func Expired(tok string, now time.Time) bool {
	if strings.Count(tok, ".") != 2 {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
