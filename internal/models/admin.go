package models

// AdminUser is a row of the admin user list.
type AdminUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Admin     bool      `json:"admin"`
	Services  []Service `json:"services,omitempty"`
	CreatedAt *Time     `json:"created_at,omitempty"`
}

// Bot is the backend's own service account and its connections.
type Bot struct {
	Name     string    `json:"name"`
	Services []Service `json:"services,omitempty"`
}

// Club is a cycling club the bot can track.
type Club struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count,omitempty"`
	Tracked     bool      `json:"tracked"`
	SyncState   SyncState `json:"sync_state,omitempty"`
}

// SlackInstall is a messaging workspace the bot is installed in.
type SlackInstall struct {
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	Channel     string `json:"channel,omitempty"`
	InstalledAt *Time  `json:"installed_at,omitempty"`
}
