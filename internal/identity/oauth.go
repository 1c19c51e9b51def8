package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// OAuthProvider refreshes ID tokens with an OAuth2 refresh token. The ID token is
// the id_token field the token endpoint returns next to the access token.
type OAuthProvider struct {
	cfg *oauth2.Config

	// OnRefreshToken is called when the endpoint rotates the refresh token so the
	// caller can persist the new one.
	OnRefreshToken func(string)

	mu      sync.Mutex
	refresh string
	idToken string
	expiry  time.Time
}

// NewOAuthProvider returns a provider for an account that already holds refreshToken.
func NewOAuthProvider(cfg *oauth2.Config, refreshToken string) *OAuthProvider {
	return &OAuthProvider{cfg: cfg, refresh: refreshToken}
}

// PasswordLogin performs the resource-owner password grant and returns a provider
// primed with the resulting tokens.
func PasswordLogin(ctx context.Context, cfg *oauth2.Config, username, password string) (*OAuthProvider, error) {
	tok, err := cfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("password login: %w", err)
	}
	p := &OAuthProvider{cfg: cfg}
	if err := p.store(tok); err != nil {
		return nil, err
	}
	return p, nil
}

// RefreshToken returns the refresh token currently held.
func (p *OAuthProvider) RefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refresh
}

// IDToken implements Provider.
func (p *OAuthProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	if !forceRefresh && p.idToken != "" && time.Now().Before(p.expiry) {
		tok := p.idToken
		p.mu.Unlock()
		return tok, nil
	}
	refresh := p.refresh
	p.mu.Unlock()

	if refresh == "" {
		return "", errors.New("no refresh token; log in first")
	}

	// A token with only a refresh token set is always expired, so the source
	// goes straight to the token endpoint.
	tok, err := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return "", fmt.Errorf("refreshing ID token: %w", err)
	}
	if err := p.store(tok); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idToken, nil
}

func (p *OAuthProvider) store(tok *oauth2.Token) error {
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return ErrNoToken
	}

	expiry := tok.Expiry
	if claims, err := ParseClaims(idToken); err == nil && claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}

	p.mu.Lock()
	rotated := tok.RefreshToken != "" && tok.RefreshToken != p.refresh
	if tok.RefreshToken != "" {
		p.refresh = tok.RefreshToken
	}
	p.idToken = idToken
	// Refreshed 30s before the token expires.
	p.expiry = expiry.Add(-30 * time.Second)
	newRefresh := p.refresh
	p.mu.Unlock()

	if rotated && p.OnRefreshToken != nil {
		p.OnRefreshToken(newRefresh)
	}
	return nil
}
