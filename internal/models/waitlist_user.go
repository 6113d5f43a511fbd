package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type UserType string

const (
	UserTypeCatParent    UserType = "cat-parent"
	UserTypeCatteryOwner UserType = "cattery-owner"
)

func (t UserType) Valid() bool {
	return t == UserTypeCatParent || t == UserTypeCatteryOwner
}

func ParseUserType(s string) (UserType, error) {
	t := UserType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", utils.ErrInvalidUserType, s)
	}
	return t, nil
}

// UserOrigin tells a backend-confirmed registration apart from a
// placeholder synthesized locally after a backend failure.
type UserOrigin string

const (
	OriginBackend       UserOrigin = "backend"
	OriginLocalFallback UserOrigin = "local-fallback"
)

// WaitlistUser mirrors a row of the waitlist_users table.
type WaitlistUser struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	UserType          UserType   `json:"user_type"`
	IsVerified        bool       `json:"is_verified"`
	QuizCompleted     bool       `json:"quiz_completed"`
	WaitlistPosition  *int       `json:"waitlist_position"`
	VerificationToken *string    `json:"verification_token"`
	Country           *string    `json:"country,omitempty"`
	Region            *string    `json:"region,omitempty"`
	City              *string    `json:"city,omitempty"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	Timezone          *string    `json:"timezone,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`

	// Never persisted.
	Origin UserOrigin `json:"-"`
}

func (u *WaitlistUser) IsLocalFallback() bool {
	return u != nil && u.Origin == OriginLocalFallback
}

// ApplyGeolocation copies the non-empty parts of g onto the user.
func (u *WaitlistUser) ApplyGeolocation(g *Geolocation) {
	if g == nil {
		return
	}
	if g.Country != "" {
		u.Country = &g.Country
	}
	if g.Region != "" {
		u.Region = &g.Region
	}
	if g.City != "" {
		u.City = &g.City
	}
	if g.Latitude != nil && g.Longitude != nil {
		u.Latitude = g.Latitude
		u.Longitude = g.Longitude
	}
	if g.Timezone != "" {
		u.Timezone = &g.Timezone
	}
}

// Geolocation is the best-effort location resolved for a registrant.
type Geolocation struct {
	Country   string
	Region    string
	City      string
	Latitude  *float64
	Longitude *float64
	Timezone  string
}

// NewFallbackUser builds the placeholder used when registration could not
// reach the backend. It carries a random id and the given synthetic position.
func NewFallbackUser(name, email string, userType UserType, position int) *WaitlistUser {
	now := time.Now().UTC()
	return &WaitlistUser{
		ID:               uuid.New(),
		Name:             name,
		Email:            email,
		UserType:         userType,
		IsVerified:       true,
		WaitlistPosition: &position,
		CreatedAt:        now,
		Origin:           OriginLocalFallback,
	}
}
