package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/identity"
	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/task"
)

// ErrNotAdmin is returned by admin actions for users without the admin claim.
var ErrNotAdmin = errors.New("views: admin claim required")

// Admin is the operator page: users, the bot, tracked clubs and messaging
// installs. Nothing is fetched unless the user's token carries the admin claim.
type Admin struct {
	base
	backend Backend
	user    *identity.User

	checked    bool
	admin      bool
	users      []models.AdminUser
	bot        *models.Bot
	clubs      []models.Club
	clubsError string
	slack      []models.SlackInstall
	got        map[string]bool
}

// AdminState is the rendered admin page.
type AdminState struct {
	Loaded     bool                  `json:"loaded"`
	Admin      bool                  `json:"admin"`
	Users      []models.AdminUser    `json:"users"`
	Bot        *models.Bot           `json:"bot,omitempty"`
	Clubs      []models.Club         `json:"clubs"`
	ClubsError string                `json:"clubs_error,omitempty"`
	Slack      []models.SlackInstall `json:"slack"`
}

func NewAdmin(backend Backend, user *identity.User, log *slog.Logger) *Admin {
	return &Admin{base: newBase("admin", log), backend: backend, user: user, got: map[string]bool{}}
}

// Load checks the admin claim and, for admins, fetches everything on the page.
func (a *Admin) Load(ctx context.Context) error {
	a.mu.Lock()
	admin := a.admin
	if a.user == nil {
		a.checked = true
	}
	a.mu.Unlock()

	switch {
	case a.user == nil:
	case admin:
		a.fetchAll()
	default:
		fetch(&a.base, "claims", a.user.IsAdmin, func(ok bool) {
			a.checked = true
			a.admin = ok
			if ok {
				a.fetchAll()
			}
		})
	}
	return a.wait(ctx)
}

func (a *Admin) fetchAll() {
	fetch(&a.base, "users", a.backend.GetUsers, func(us []models.AdminUser) {
		a.users = us
		a.got["users"] = true
	})
	fetch(&a.base, "bot", a.backend.GetBot, func(b *models.Bot) {
		a.bot = b
		a.got["bot"] = true
	})
	fetchOr(&a.base, "clubs", a.backend.GetClubs, func(cs []models.Club) {
		a.clubs = cs
		a.clubsError = ""
		a.got["clubs"] = true
	}, func(err error) {
		var se *api.StatusError
		if errors.As(err, &se) {
			a.clubsError = se.StatusText()
		} else {
			a.clubsError = err.Error()
		}
	})
	fetch(&a.base, "slack", a.backend.GetSlack, func(s []models.SlackInstall) {
		a.slack = s
		a.got["slack"] = true
	})
}

// ClubAction is a club operation.
type ClubAction string

const (
	ClubTrack   ClubAction = "track"
	ClubUntrack ClubAction = "untrack"
	ClubSync    ClubAction = "sync"
)

// Club runs action on one club and waits for it. The club's row is replaced
// with the backend's answer.
func (a *Admin) Club(ctx context.Context, clubID string, action ClubAction) error {
	a.mu.Lock()
	admin := a.admin
	a.mu.Unlock()
	if !admin {
		return ErrNotAdmin
	}

	var call func(context.Context, string) (*models.Club, error)
	switch action {
	case ClubTrack:
		call = a.backend.TrackClub
	case ClubUntrack:
		call = a.backend.UntrackClub
	case ClubSync:
		call = a.backend.SyncClub
	default:
		return fmt.Errorf("views: unknown club action %q", action)
	}

	var failed error
	task.Go(a.group, func(ctx context.Context) (*models.Club, error) {
		return call(ctx, clubID)
	}, func(c *models.Club) {
		a.mu.Lock()
		defer a.mu.Unlock()
		for i := range a.clubs {
			if a.clubs[i].ID == c.ID {
				a.clubs[i] = *c
				return
			}
		}
		a.clubs = append(a.clubs, *c)
	}, func(err error) {
		a.log.Warn("club action failed", "club", clubID, "action", action, "error", err)
		failed = err
	})
	if err := a.wait(ctx); err != nil {
		return err
	}
	return failed
}

func (a *Admin) State() AdminState {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := AdminState{
		Admin:      a.admin,
		Users:      a.users,
		Bot:        a.bot,
		Clubs:      a.clubs,
		ClubsError: a.clubsError,
		Slack:      a.slack,
	}
	st.Loaded = a.checked && (!a.admin || len(a.got) == 4)
	if st.Users == nil {
		st.Users = []models.AdminUser{}
	}
	if st.Clubs == nil {
		st.Clubs = []models.Club{}
	}
	if st.Slack == nil {
		st.Slack = []models.SlackInstall{}
	}
	return st
}
