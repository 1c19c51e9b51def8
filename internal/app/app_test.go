package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/config"
	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTokenServer accepts password "secret" and any refresh token, rotating the
// refresh token on every call.
func newTokenServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := calls.Add(1)
		if r.Form.Get("grant_type") == "password" && r.Form.Get("password") != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
			Email:            "ada@example.com",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString([]byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-" + string(rune('0'+n)),
			"id_token":      idToken,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(t *testing.T, tokenURL string) *config.Config {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Backend.URL = backend.URL
	cfg.Identity.TokenURL = tokenURL
	cfg.Identity.ClientID = "fitconsole"
	cfg.State.Dir = t.TempDir()
	return cfg
}

func openApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Open(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// TestResumeWithoutLogin verifies Resume reports ErrNotSignedIn when no token is stored.
func TestResumeWithoutLogin(t *testing.T) {
	srv, calls := newTokenServer(t)
	a := openApp(t, testConfig(t, srv.URL))

	if _, err := a.Resume(context.Background()); !errors.Is(err, api.ErrNotSignedIn) {
		t.Fatalf("err = %v, want ErrNotSignedIn", err)
	}
	if calls.Load() != 0 {
		t.Errorf("token endpoint called %d times", calls.Load())
	}
}

// TestLoginPersistsRefreshToken verifies a later process can resume from the stored refresh token.
func TestLoginPersistsRefreshToken(t *testing.T) {
	srv, _ := newTokenServer(t)
	cfg := testConfig(t, srv.URL)

	a := openApp(t, cfg)
	user, err := a.Login(context.Background(), "ada", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if user.UID != "u1" || user.Email != "ada@example.com" {
		t.Errorf("user = %+v", user)
	}
	a.Close()

	b := openApp(t, cfg)
	user, err = b.Resume(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if user.UID != "u1" {
		t.Errorf("resumed uid = %q", user.UID)
	}

	// Resume refreshed and the endpoint rotated the token; the new one is stored.
	tok, ok, err := b.State.Get(state.KeyRefreshToken)
	if err != nil || !ok {
		t.Fatalf("stored token: %q %v %v", tok, ok, err)
	}
	if tok == "refresh-1" {
		t.Error("rotated refresh token was not saved")
	}
}

// TestLoginWrongPassword verifies a rejected login stores nothing.
func TestLoginWrongPassword(t *testing.T) {
	srv, _ := newTokenServer(t)
	a := openApp(t, testConfig(t, srv.URL))

	if _, err := a.Login(context.Background(), "ada", "wrong"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok, _ := a.State.Get(state.KeyRefreshToken); ok {
		t.Error("refresh token stored after failed login")
	}
	if a.Auth.CurrentUser() != nil {
		t.Error("signed in after failed login")
	}
}

// TestLogoutForgetsToken verifies logout signs out and removes the stored token.
func TestLogoutForgetsToken(t *testing.T) {
	srv, _ := newTokenServer(t)
	a := openApp(t, testConfig(t, srv.URL))

	if _, err := a.Login(context.Background(), "ada", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := a.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a.Auth.CurrentUser() != nil {
		t.Error("still signed in")
	}
	if _, err := a.Resume(context.Background()); !errors.Is(err, api.ErrNotSignedIn) {
		t.Errorf("resume after logout err = %v", err)
	}
}

// TestFakeUserMode verifies fake mode signs in without any identity service.
func TestFakeUserMode(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Identity.FakeUser = true
	cfg.Identity.FakeAdmin = true
	a := openApp(t, cfg)

	user, err := a.Resume(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	admin, err := user.IsAdmin(context.Background())
	if err != nil || !admin {
		t.Errorf("admin = %v, err = %v", admin, err)
	}

	resp, err := a.Bridge.CreateSession(context.Background(), user)
	if err != nil || !resp.OK() {
		t.Errorf("fake session = %+v, %v", resp, err)
	}
}
