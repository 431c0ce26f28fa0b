package models

import "time"

// ReportTypeKey identifies one of the fixed report kinds
type ReportTypeKey string

const (
	ReportNoBus       ReportTypeKey = "no_bus"
	ReportOverpriced  ReportTypeKey = "overpriced"
	ReportOvercrowded ReportTypeKey = "overcrowded"
	ReportBreakdown   ReportTypeKey = "breakdown"
	ReportOther       ReportTypeKey = "other"
)

// User is the profile document of a registered user
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	City           string    `json:"city"`
	PreferredLines []string  `json:"preferred_lines"`
	DarkMode       bool      `json:"dark_mode"` // legacy, the theme lives on the device
	Notifications  bool      `json:"notifications"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserPatch holds the profile fields to change; nil fields are left as is
type UserPatch struct {
	Name           *string   `json:"name,omitempty"`
	City           *string   `json:"city,omitempty"`
	PreferredLines *[]string `json:"preferred_lines,omitempty"`
	Notifications  *bool     `json:"notifications,omitempty"`
}

// Apply returns a copy of u with the patch merged in
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.PreferredLines != nil {
		u.PreferredLines = append([]string{}, (*p.PreferredLines)...)
	} else {
		u.PreferredLines = append([]string{}, u.PreferredLines...)
	}
	if p.Notifications != nil {
		u.Notifications = *p.Notifications
	}
	return u
}

// HasPreferredLine reports whether lineID is one of the user's lines
func (u *User) HasPreferredLine(lineID string) bool {
	for _, l := range u.PreferredLines {
		if l == lineID {
			return true
		}
	}
	return false
}

// Identity is a set of credentials known to the identity provider
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is what a successful sign-in or sign-up returns
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// PushPlatform is the push service a device token belongs to
type PushPlatform string

const (
	PlatformIOS     PushPlatform = "ios"
	PlatformAndroid PushPlatform = "android"
)

// PushToken is a device registered for push notifications
type PushToken struct {
	UserID    string       `json:"user_id"`
	Token     string       `json:"token"`
	Platform  PushPlatform `json:"platform"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// City is a city covered by the service
type City struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// TransportLine is a transport route belonging to one city
type TransportLine struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	CityID string `json:"city_id"`
	Route  string `json:"route"`
	Active bool   `json:"active"`
}

// ReportType describes one report kind for display
type ReportType struct {
	Key         ReportTypeKey `json:"key"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Color       string        `json:"color"`
}

// Report is a user-submitted record of a transport problem
type Report struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	UserName    string        `json:"user_name"`
	CityID      string        `json:"city_id"`
	LineID      string        `json:"line_id"`
	LineName    string        `json:"line_name"`
	Type        ReportTypeKey `json:"type"`
	Description string        `json:"description"`
	ImageURL    string        `json:"image_url"`
	Price       float64       `json:"price"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HasPrice reports whether the price should be shown. A price of exactly
// zero means no price was given.
func (r *Report) HasPrice() bool {
	return r.Price != 0
}

// NewReport is the payload of a report submission. Identity and
// timestamps are assigned on write.
type NewReport struct {
	UserID      string        `json:"user_id"`
	UserName    string        `json:"user_name"`
	CityID      string        `json:"city_id"`
	LineID      string        `json:"line_id"`
	LineName    string        `json:"line_name"`
	Type        ReportTypeKey `json:"type"`
	Description string        `json:"description"`
	ImageURL    *string       `json:"image_url,omitempty"`
	Price       *float64      `json:"price,omitempty"`
}

// Build turns the submission into a report document, defaulting a missing
// price to 0 and a missing image to "".
func (n NewReport) Build(id string, now time.Time) Report {
	r := Report{
		ID:          id,
		UserID:      n.UserID,
		UserName:    n.UserName,
		CityID:      n.CityID,
		LineID:      n.LineID,
		LineName:    n.LineName,
		Type:        n.Type,
		Description: n.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if n.ImageURL != nil {
		r.ImageURL = *n.ImageURL
	}
	if n.Price != nil {
		r.Price = *n.Price
	}
	return r
}

// Filter narrows the report feed. Empty fields impose no constraint.
type Filter struct {
	CityID string        `json:"city_id,omitempty"`
	LineID string        `json:"line_id,omitempty"`
	Type   ReportTypeKey `json:"type,omitempty"`
}

// IsEmpty reports whether no field is set
func (f Filter) IsEmpty() bool {
	return f.CityID == "" && f.LineID == "" && f.Type == ""
}

// Match reports whether r satisfies every set field of f
func (f Filter) Match(r *Report) bool {
	if f.CityID != "" && r.CityID != f.CityID {
		return false
	}
	if f.LineID != "" && r.LineID != f.LineID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	return true
}
