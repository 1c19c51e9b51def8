package api

import (
	"context"

	"github.com/claude/fitconsole/internal/models"
)

// Admin operations. The backend rejects them for users without the admin claim.

// ClubRequest names a club.
type ClubRequest struct {
	ClubID string `json:"club_id" validate:"required"`
}

// AdminServiceRequest targets another user's service connection.
type AdminServiceRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Service string `json:"service" validate:"required,oneof=strava withings fitbit garmin slack"`
}

// GetUsers lists all users.
func (c *Client) GetUsers(ctx context.Context) ([]models.AdminUser, error) {
	var out []models.AdminUser
	if err := c.read(ctx, "admin/get_users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBot returns the bot account.
func (c *Client) GetBot(ctx context.Context) (*models.Bot, error) {
	var out models.Bot
	if err := c.read(ctx, "admin/get_bot", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClubs lists the clubs the bot knows about.
func (c *Client) GetClubs(ctx context.Context) ([]models.Club, error) {
	var out []models.Club
	if err := c.read(ctx, "admin/get_clubs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) club(ctx context.Context, op, clubID string) (*models.Club, error) {
	var out models.Club
	if err := c.call(ctx, op, &ClubRequest{ClubID: clubID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncClub refreshes a club's members and activities.
func (c *Client) SyncClub(ctx context.Context, clubID string) (*models.Club, error) {
	return c.club(ctx, "admin/sync_club", clubID)
}

// TrackClub starts tracking a club.
func (c *Client) TrackClub(ctx context.Context, clubID string) (*models.Club, error) {
	return c.club(ctx, "admin/track_club", clubID)
}

// UntrackClub stops tracking a club.
func (c *Client) UntrackClub(ctx context.Context, clubID string) (*models.Club, error) {
	return c.club(ctx, "admin/untrack_club", clubID)
}

// GetSlack lists the messaging workspaces the bot is installed in.
func (c *Client) GetSlack(ctx context.Context) ([]models.SlackInstall, error) {
	var out []models.SlackInstall
	if err := c.read(ctx, "admin/get_slack", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncAdminService syncs another user's service.
func (c *Client) SyncAdminService(ctx context.Context, req AdminServiceRequest) (*models.Service, error) {
	return c.service(ctx, "admin/sync_service", &req)
}

// AdminDisconnect removes another user's service connection.
func (c *Client) AdminDisconnect(ctx context.Context, req AdminServiceRequest) error {
	return c.call(ctx, "admin/disconnect", &req, nil)
}
