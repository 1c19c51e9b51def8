package models

// Third-party data sources a user can connect.
const (
	ServiceStrava   = "strava"
	ServiceWithings = "withings"
	ServiceFitbit   = "fitbit"
	ServiceGarmin   = "garmin"
	ServiceSlack    = "slack"
)

// UserServices are the services shown on the connections page.
var UserServices = []string{ServiceStrava, ServiceWithings, ServiceFitbit, ServiceGarmin}

// SyncState is the backend-reported status of a service connection.
type SyncState string

const (
	SyncStateSyncing    SyncState = "syncing"
	SyncStateSuccessful SyncState = "successful"
	SyncStateError      SyncState = "error"
)

// Service is a third-party data-source connection.
type Service struct {
	Name      string         `json:"name"`
	Connected bool           `json:"connected"`
	SyncState SyncState      `json:"sync_state,omitempty"`
	SyncDate  *Time          `json:"sync_date,omitempty"`
	SyncError string         `json:"sync_error,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// Client is a push-notification device registration.
type Client struct {
	ID        string `json:"id"`
	Token     string `json:"token,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Enabled   bool   `json:"enabled"`
	CreatedAt *Time  `json:"created_at,omitempty"`
	UpdatedAt *Time  `json:"updated_at,omitempty"`
}
