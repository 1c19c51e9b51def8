package api

import (
	"context"

	"github.com/claude/fitconsole/internal/models"
)

// ListRequest pages through activities, routes or segments.
type ListRequest struct {
	Limit  int `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
	Offset int `json:"offset,omitempty" validate:"min=0"`
}

// IDRequest names a single record.
type IDRequest struct {
	ID string `json:"id" validate:"required"`
}

// ServiceRequest names a third-party service.
type ServiceRequest struct {
	Service string `json:"service" validate:"required,oneof=strava withings fitbit garmin slack"`
}

// UserPassRequest connects a service that takes a username and password.
type UserPassRequest struct {
	Service  string `json:"service" validate:"required,oneof=garmin"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateServiceRequest replaces a service's settings.
type UpdateServiceRequest struct {
	Service  string         `json:"service" validate:"required,oneof=strava withings fitbit garmin slack"`
	Settings map[string]any `json:"settings" validate:"required"`
}

// PreferencesRequest updates the user's preferences.
type PreferencesRequest struct {
	Units models.UnitPreference `json:"units" validate:"required,oneof=metric imperial"`
}

// CompareRequest asks for efforts on a segment, optionally around one activity.
type CompareRequest struct {
	SegmentID  string `json:"segment_id" validate:"required"`
	ActivityID string `json:"activity_id,omitempty"`
}

// ClientRequest registers or updates a push-notification device.
type ClientRequest struct {
	ID       string `json:"id" validate:"required,uuid"`
	Token    string `json:"token,omitempty" validate:"required_if=Enabled true"`
	Platform string `json:"platform,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// GetProfile returns the signed-in user's profile.
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.read(ctx, "get_profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) list(ctx context.Context, op string, req ListRequest) ([]models.Record, error) {
	var out []models.Record
	if err := c.call(ctx, op, &req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) record(ctx context.Context, op, id string) (*models.Record, error) {
	var r models.Record
	if err := c.call(ctx, op, &IDRequest{ID: id}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetActivities lists the user's activities, newest first.
func (c *Client) GetActivities(ctx context.Context, req ListRequest) ([]models.Record, error) {
	return c.list(ctx, "get_activities", req)
}

// GetActivity returns one activity.
func (c *Client) GetActivity(ctx context.Context, id string) (*models.Record, error) {
	return c.record(ctx, "get_activity", id)
}

// GetRoutes lists the user's routes.
func (c *Client) GetRoutes(ctx context.Context, req ListRequest) ([]models.Record, error) {
	return c.list(ctx, "get_routes", req)
}

// GetRoute returns one route.
func (c *Client) GetRoute(ctx context.Context, id string) (*models.Record, error) {
	return c.record(ctx, "get_route", id)
}

// GetSegments lists the user's starred segments.
func (c *Client) GetSegments(ctx context.Context, req ListRequest) ([]models.Record, error) {
	return c.list(ctx, "get_segments", req)
}

// GetSegment returns one segment.
func (c *Client) GetSegment(ctx context.Context, id string) (*models.Record, error) {
	return c.record(ctx, "get_segment", id)
}

// CompareSegments returns the efforts recorded on a segment.
func (c *Client) CompareSegments(ctx context.Context, req CompareRequest) (*models.SegmentComparison, error) {
	var out models.SegmentComparison
	if err := c.call(ctx, "compare_segments", &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSeries returns the body-composition measurement series.
func (c *Client) GetSeries(ctx context.Context) ([]models.Measurement, error) {
	var s models.Series
	if err := c.read(ctx, "get_series", &s); err != nil {
		return nil, err
	}
	return s.Measurements, nil
}

// GetClients lists the user's push-notification devices.
func (c *Client) GetClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	if err := c.read(ctx, "get_clients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateClient creates or updates a push-notification device.
func (c *Client) UpdateClient(ctx context.Context, req ClientRequest) (*models.Client, error) {
	var out models.Client
	if err := c.call(ctx, "update_client", &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) service(ctx context.Context, op string, req any) (*models.Service, error) {
	var out models.Service
	if err := c.call(ctx, op, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetService returns the connection state of one service.
func (c *Client) GetService(ctx context.Context, name string) (*models.Service, error) {
	return c.service(ctx, "get_service", &ServiceRequest{Service: name})
}

// ConnectUserPass connects a service using account credentials.
func (c *Client) ConnectUserPass(ctx context.Context, req UserPassRequest) (*models.Service, error) {
	return c.service(ctx, "connect_userpass", &req)
}

// Disconnect removes a service connection.
func (c *Client) Disconnect(ctx context.Context, name string) error {
	return c.call(ctx, "disconnect", &ServiceRequest{Service: name}, nil)
}

// SyncService asks the backend to pull fresh data from a service.
func (c *Client) SyncService(ctx context.Context, name string) (*models.Service, error) {
	return c.service(ctx, "sync_service", &ServiceRequest{Service: name})
}

// UpdateService replaces a service's settings.
func (c *Client) UpdateService(ctx context.Context, req UpdateServiceRequest) (*models.Service, error) {
	return c.service(ctx, "update_service", &req)
}

// UpdatePreferences stores the user's preferences and returns the saved values.
func (c *Client) UpdatePreferences(ctx context.Context, req PreferencesRequest) (*models.Preferences, error) {
	var out models.Preferences
	if err := c.call(ctx, "update_preferences", &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
