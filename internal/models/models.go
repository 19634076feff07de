package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated SafeCall account
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// EmergencyContact is a person who receives location shares and emergency SMS.
// More than one contact may be primary.
type EmergencyContact struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	PhoneNumber  string    `json:"phone_number" db:"phone_number"`
	Relationship string    `json:"relationship" db:"relationship"`
	IsPrimary    bool      `json:"is_primary" db:"is_primary"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ContactUpdate carries the fields of a partial contact edit. Nil fields are
// left untouched.
type ContactUpdate struct {
	Name         *string `json:"name,omitempty"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	Relationship *string `json:"relationship,omitempty"`
	IsPrimary    *bool   `json:"is_primary,omitempty"`
}

// PhoneNumbers extracts the phone numbers of contacts in order.
func PhoneNumbers(contacts []EmergencyContact) []string {
	phones := make([]string, 0, len(contacts))
	for _, c := range contacts {
		phones = append(phones, c.PhoneNumber)
	}
	return phones
}

type IncidentType string

const (
	IncidentFakeCall      IncidentType = "fake_call"
	IncidentLocationShare IncidentType = "location_share"
	IncidentEmergencyCall IncidentType = "emergency_call"
)

// SafetyIncident is an append-only record of a safety action
type SafetyIncident struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	UserID          uuid.UUID    `json:"user_id" db:"user_id"`
	IncidentType    IncidentType `json:"incident_type" db:"incident_type"`
	LocationLat     *float64     `json:"location_lat,omitempty" db:"location_lat"`
	LocationLng     *float64     `json:"location_lng,omitempty" db:"location_lng"`
	LocationAddress *string      `json:"location_address,omitempty" db:"location_address"`
	Timestamp       time.Time    `json:"timestamp" db:"timestamp"`
	Notes           string       `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}

// UserProfile is the per-user singleton holding the emergency message template
type UserProfile struct {
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	DisplayName      string    `json:"display_name" db:"display_name"`
	EmergencyMessage string    `json:"emergency_message" db:"emergency_message"`
	PushToken        string    `json:"push_token,omitempty" db:"push_token"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileUpdate is an upsert payload; nil fields keep their stored value.
type ProfileUpdate struct {
	DisplayName      *string `json:"display_name,omitempty"`
	EmergencyMessage *string `json:"emergency_message,omitempty"`
	PushToken        *string `json:"push_token,omitempty"`
}

// LocationSnapshot is a single resolved position. It is built fresh for every
// request and never stored on its own.
type LocationSnapshot struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// Address is one reverse-geocoding result. Empty fields are absent.
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	Region string `json:"region,omitempty"`
}

// LoginPreferences backs the "keep me signed in" checkbox of a device
type LoginPreferences struct {
	RememberMe bool   `json:"remember_me"`
	Email      string `json:"email,omitempty"`
}

// LoginPreferencesUpdate is a partial edit of LoginPreferences. Nil fields
// keep the stored value.
type LoginPreferencesUpdate struct {
	RememberMe *bool   `json:"remember_me"`
	Email      *string `json:"email"`
}
