package identity

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fakeSigningKey signs fake-user tokens. Nothing verifies them.
var fakeSigningKey = []byte("fitconsole-fake-user")

// FakeProvider mints tokens for a local fake user without any identity service.
type FakeProvider struct {
	UID   string
	Email string
	Name  string
	Admin bool

	issued atomic.Int64
}

// IDToken implements Provider. Every call mints a fresh token.
func (f *FakeProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.issued.Add(1)

	now := time.Now()
	claims := Claims{
		Email: f.Email,
		Name:  f.Name,
		Admin: f.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   f.UID,
			Issuer:    "fitconsole-fake",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
}

// Issued returns how many tokens have been minted.
func (f *FakeProvider) Issued() int {
	return int(f.issued.Load())
}
