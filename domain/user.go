package domain

import (
	"context"
	"encoding/json"
)

// User is the commenting account. It is owned by the profile service;
// this module only reads it and updates the profile data blob.
type User struct {
	ID       int64
	Handle   string
	Username string
	Email    string
	Picture  string // file name inside the avatar directory
	Data     ProfileData
}

// RawField is an optional JSON value copied verbatim from the profile data
type RawField = json.RawMessage

const (
	BadgeCommented = "commented"
	BadgeReplied   = "replied"
)

// ProfileData is the JSON object stored in users.data.
// Unknown keys are kept as they are so saving never drops them.
type ProfileData map[string]json.RawMessage

// ParseProfileData decodes a users.data blob. An empty or invalid blob gives empty data.
func ParseProfileData(blob string) ProfileData {
	data := ProfileData{}
	if blob == "" {
		return data
	}
	if err := json.Unmarshal([]byte(blob), &data); err != nil || data == nil {
		return ProfileData{}
	}
	return data
}

// Field returns the raw value of key, or nil when it is absent or null
func (p ProfileData) Field(key string) RawField {
	raw, ok := p[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// Badges returns the badges object, nil when the user has none
func (p ProfileData) Badges() RawField { return p.Field("badges") }

// Social returns the social links object, nil when absent
func (p ProfileData) Social() RawField { return p.Field("social") }

// Patron returns the patron object, nil when absent
func (p ProfileData) Patron() RawField { return p.Field("patron") }

// AddBadge sets badges.<name> to true and keeps the other badges
func (p ProfileData) AddBadge(name string) error {
	badges := map[string]json.RawMessage{}
	if raw := p.Badges(); raw != nil {
		if err := json.Unmarshal(raw, &badges); err != nil {
			// badges was not an object; start over
			badges = map[string]json.RawMessage{}
		}
	}
	badges[name] = json.RawMessage("true")
	encoded, err := json.Marshal(badges)
	if err != nil {
		return err
	}
	p["badges"] = encoded
	return nil
}

// Encode returns the blob to store in users.data
func (p ProfileData) Encode() (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]json.RawMessage(p))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UserRepository resolves identities. Every getter returns ErrNotFound for unknown users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (User, error)
	GetByHandle(ctx context.Context, handle string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)

	// SaveData persists u.Data
	SaveData(ctx context.Context, u *User) error
}

// AvatarResolver maps a handle to the directory holding the user's pictures
type AvatarResolver interface {
	Dir(handle string) string
}
