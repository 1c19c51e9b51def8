// Package identity tracks the signed-in user and mints ID tokens for backend calls.
//
// An Auth is created once and passed to whatever needs the current user; there is
// no package-level state. Listeners registered with Subscribe see every sign-in
// and sign-out.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Auth holds the current user and notifies subscribers when it changes.
type Auth struct {
	mu     sync.Mutex
	user   *User
	subs   map[int]func(*User)
	nextID int
	log    *slog.Logger
}

// NewAuth returns an Auth with no signed-in user.
func NewAuth(log *slog.Logger) *Auth {
	return &Auth{subs: map[int]func(*User){}, log: log}
}

// Subscribe registers fn for auth state changes. fn is called right away with the
// current user (nil when signed out). The returned function removes fn and is
// safe to call more than once.
func (a *Auth) Subscribe(fn func(*User)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	current := a.user
	a.mu.Unlock()

	fn(current)

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// CurrentUser returns the signed-in user or nil.
func (a *Auth) CurrentUser() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// SignIn makes p the current account. It mints a first token to learn who the
// user is, so a provider with bad credentials fails here rather than on the first
// backend call.
func (a *Auth) SignIn(ctx context.Context, p Provider) (*User, error) {
	u := &User{provider: p}
	res, err := u.IDTokenResult(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	u.UID = res.Claims.Subject
	u.Email = res.Claims.Email
	u.Name = res.Claims.Name

	a.set(u)
	a.log.Info("signed in", "uid", u.UID, "admin", res.Claims.Admin)
	return u, nil
}

// SignOut clears the current user.
func (a *Auth) SignOut(ctx context.Context) {
	if a.CurrentUser() == nil {
		return
	}
	a.set(nil)
	a.log.Info("signed out")
}

func (a *Auth) set(u *User) {
	a.mu.Lock()
	a.user = u
	subs := make([]func(*User), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
}
