package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when a source produced an empty token.
var ErrNoToken = errors.New("identity provider returned no ID token")

// Provider mints ID tokens for one account.
type Provider interface {
	// IDToken returns a valid token, refreshing it when forceRefresh is set or
	// the cached one has expired.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// User is a signed-in account.
type User struct {
	UID   string
	Email string
	Name  string

	provider Provider
}

// NewUser wraps a token source; Auth.SignIn is the usual way to get a User.
func NewUser(uid string, p Provider) *User {
	return &User{UID: uid, provider: p}
}

// Claims are the ID token fields the client reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenResult is an ID token together with its decoded claims.
type TokenResult struct {
	Token     string
	Claims    Claims
	ExpiresAt time.Time
}

// IDToken returns a bearer token for backend calls.
func (u *User) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	tok, err := u.provider.IDToken(ctx, forceRefresh)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// IDTokenResult returns the token with its claims. The signature is not checked:
// the backend verifies tokens, the client only reads them.
func (u *User) IDTokenResult(ctx context.Context, forceRefresh bool) (*TokenResult, error) {
	tok, err := u.IDToken(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	claims, err := ParseClaims(tok)
	if err != nil {
		return nil, err
	}
	res := &TokenResult{Token: tok, Claims: *claims}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}

// IsAdmin reports whether the user's token carries the admin claim.
func (u *User) IsAdmin(ctx context.Context) (bool, error) {
	res, err := u.IDTokenResult(ctx, false)
	if err != nil {
		return false, err
	}
	return res.Claims.Admin, nil
}

// ParseClaims decodes an ID token's claims without verifying its signature.
func ParseClaims(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parsing ID token: %w", err)
	}
	return &claims, nil
}
