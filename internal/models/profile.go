package models

// UnitPreference is the display unit system chosen by a user.
// The empty value means no preference was found and behaves as metric.
type UnitPreference string

const (
	UnitsUnset    UnitPreference = ""
	UnitsMetric   UnitPreference = "metric"
	UnitsImperial UnitPreference = "imperial"
)

// ParseUnitPreference maps user input onto a preference. Unknown values return false.
func ParseUnitPreference(s string) (UnitPreference, bool) {
	switch UnitPreference(s) {
	case UnitsMetric, UnitsImperial:
		return UnitPreference(s), true
	}
	return UnitsUnset, false
}

// Imperial reports whether values should be shown in imperial units.
func (u UnitPreference) Imperial() bool {
	return u == UnitsImperial
}

// Preferences are the user-editable settings stored on the profile.
type Preferences struct {
	Units UnitPreference `json:"units,omitempty"`
}

// UserProperties holds the profile attributes beyond identity.
type UserProperties struct {
	Preferences *Preferences `json:"preferences,omitempty"`
	Athlete     string       `json:"athlete,omitempty"`
	Photo       string       `json:"photo,omitempty"`
}

// ProfileUser is the user block of get_profile.
type ProfileUser struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email,omitempty"`
	Properties *UserProperties `json:"properties,omitempty"`
}

// Profile is the payload of get_profile.
type Profile struct {
	User     *ProfileUser `json:"user,omitempty"`
	Services []Service    `json:"services,omitempty"`
}

// Units returns the stored unit preference, or UnitsUnset when any level of the
// profile is missing.
func (p *Profile) Units() UnitPreference {
	if p == nil || p.User == nil || p.User.Properties == nil || p.User.Properties.Preferences == nil {
		return UnitsUnset
	}
	return p.User.Properties.Preferences.Units
}

// Service returns the named service connection, if the profile carries it.
func (p *Profile) Service(name string) (Service, bool) {
	if p == nil {
		return Service{}, false
	}
	for _, s := range p.Services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}
