// Package app wires configuration, local state and the signed-in user into the
// clients the binaries use.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/config"
	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/session"
	"github.com/claude/fitconsole/internal/state"
)

// App holds one process's clients. All of them share an HTTP client so the
// session cookie set by the bridge rides along on API calls.
type App struct {
	Config *config.Config
	Log    *slog.Logger
	State  *state.DB
	Auth   *identity.Auth
	API    *api.Client
	Bridge *session.Bridge

	httpClient *http.Client
}

// Open creates the clients. Nobody is signed in until Resume or Login.
func Open(cfg *config.Config, log *slog.Logger) (*App, error) {
	st, err := state.Open(cfg.State.Dir)
	if err != nil {
		return nil, err
	}

	httpClient, err := session.NewHTTPClient(cfg.Backend.Timeout)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Log:        log,
		State:      st,
		Auth:       identity.NewAuth(log),
		httpClient: httpClient,
	}
	a.API = api.NewClient(cfg.Backend.URL, httpClient, a.Auth, log)
	a.Bridge = session.NewBridge(cfg.Backend.URL, httpClient, cfg.Identity.FakeUser, log)
	a.API.OnAuthFailure(func(err error) {
		log.Error("backend rejected the session; run `fitconsole login` again", "error", err)
	})
	return a, nil
}

// Close releases local state.
func (a *App) Close() error {
	return a.State.Close()
}

// HTTPClient is the cookie-carrying client shared by the API and the bridge.
func (a *App) HTTPClient() *http.Client {
	return a.httpClient
}

func (a *App) oauthConfig() *oauth2.Config {
	id := a.Config.Identity
	return &oauth2.Config{
		ClientID:     id.ClientID,
		ClientSecret: id.ClientSecret,
		Scopes:       id.Scopes,
		Endpoint:     oauth2.Endpoint{TokenURL: id.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

// oauthContext makes the token endpoint calls use the shared HTTP client.
func (a *App) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *App) fakeProvider() *identity.FakeProvider {
	return &identity.FakeProvider{
		UID:   "fake-user",
		Email: "fake@fitconsole.local",
		Name:  "Fake User",
		Admin: a.Config.Identity.FakeAdmin,
	}
}

// Resume signs in with the refresh token stored by an earlier Login. In fake
// mode it signs in the fake user. It returns api.ErrNotSignedIn when no token
// is stored.
func (a *App) Resume(ctx context.Context) (*identity.User, error) {
	if a.Config.Identity.FakeUser {
		return a.Auth.SignIn(ctx, a.fakeProvider())
	}

	refresh, ok, err := a.State.Get(state.KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, api.ErrNotSignedIn
	}

	p := identity.NewOAuthProvider(a.oauthConfig(), refresh)
	p.OnRefreshToken = a.saveRefreshToken
	user, err := a.Auth.SignIn(a.oauthContext(ctx), p)
	if err != nil {
		return nil, fmt.Errorf("resuming session: %w", err)
	}
	return user, nil
}

// Login signs in with a username and password and stores the refresh token.
func (a *App) Login(ctx context.Context, username, password string) (*identity.User, error) {
	if a.Config.Identity.FakeUser {
		return a.Auth.SignIn(ctx, a.fakeProvider())
	}

	ctx = a.oauthContext(ctx)
	p, err := identity.PasswordLogin(ctx, a.oauthConfig(), username, password)
	if err != nil {
		return nil, err
	}
	if err := a.State.Set(state.KeyRefreshToken, p.RefreshToken()); err != nil {
		return nil, err
	}
	p.OnRefreshToken = a.saveRefreshToken
	return a.Auth.SignIn(ctx, p)
}

// Logout closes the backend session, signs out and forgets the refresh token.
// A failed session close is logged and does not stop the sign-out.
func (a *App) Logout(ctx context.Context) error {
	if user := a.Auth.CurrentUser(); user != nil {
		if resp, err := a.Bridge.CloseSession(ctx, user); err != nil {
			a.Log.Warn("closing session failed", "error", err)
		} else if !resp.OK() {
			a.Log.Warn("closing session failed", "status", resp.Status)
		}
	}
	a.Auth.SignOut(ctx)
	return a.State.Delete(state.KeyRefreshToken)
}

func (a *App) saveRefreshToken(tok string) {
	if err := a.State.Set(state.KeyRefreshToken, tok); err != nil {
		a.Log.Error("saving refresh token failed", "error", err)
	}
}
