package userapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// User mirrors the remote user resource.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Draft is the not-yet-persisted projection of a User sent on create.
type Draft struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	IsActive  *bool  `json:"isActive,omitempty"`
}

// NewDraft returns an empty draft with IsActive defaulting to true.
func NewDraft() Draft {
	active := true
	return Draft{IsActive: &active}
}

// DraftFrom copies the editable fields of u into a fresh draft.
func DraftFrom(u User) Draft {
	active := u.IsActive
	return Draft{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  &active,
	}
}

// Active reports the effective IsActive value (true when unset).
func (d Draft) Active() bool {
	return d.IsActive == nil || *d.IsActive
}

// Clone returns a copy that does not share the IsActive pointer.
func (d Draft) Clone() Draft {
	if d.IsActive != nil {
		active := *d.IsActive
		d.IsActive = &active
	}
	return d
}

// UpdateRequest is the full record sent on PUT /api/users/{id}.
type UpdateRequest struct {
	ID int64 `json:"id"`
	Draft
}

// AppInfo is the aggregate application snapshot returned by /api/v1/info.
type AppInfo struct {
	Application string    `json:"application"`
	Version     string    `json:"version"`
	Timestamp   Timestamp `json:"timestamp"`
	Status      string    `json:"status"`
	TotalUsers  int64     `json:"totalUsers"`
}

// Health is the payload of /api/v1/health.
type Health struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp accepts RFC 3339 values as well as zone-less local date-times.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
