package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

// Coordinates is a raw position fix in degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// LocationProvider is the device positioning capability.
type LocationProvider interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context) (Coordinates, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) ([]models.Address, error)
}

// Geocoder turns coordinates into zero or more addresses.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) ([]models.Address, error)
}

// ContactStore reads a user's emergency contacts in primary-first order.
type ContactStore interface {
	ListContacts(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error)
}

// ProfileStore reads the user's profile. A missing profile is (nil, nil).
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
}

// IncidentLogger appends safety incidents.
type IncidentLogger interface {
	LogIncident(ctx context.Context, incident *models.SafetyIncident) error
}

// Messenger dispatches one text to many recipients.
type Messenger interface {
	Available(ctx context.Context) bool
	Send(ctx context.Context, recipients []string, body string) error
}

// Dialer launches a call for a tel: URI.
type Dialer interface {
	CanOpen(ctx context.Context, uri string) (bool, error)
	Open(ctx context.Context, uri string) error
}

// Notifier pushes a notification to a device token.
type Notifier interface {
	Notify(ctx context.Context, token, title, body string) error
}

var errNoPosition = errors.New("position unavailable")

// ReportedFix is a position reported by the client together with the
// permission state it observed on the device.
type ReportedFix struct {
	PermissionGranted bool     `json:"permission_granted"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
}

// DeviceLocation serves permission and position from a ReportedFix and
// reverse geocoding from a Geocoder.
type DeviceLocation struct {
	Fix      ReportedFix
	Geocoder Geocoder
}

func NewDeviceLocation(fix ReportedFix, geocoder Geocoder) *DeviceLocation {
	if geocoder == nil {
		geocoder = NoGeocoder{}
	}
	return &DeviceLocation{Fix: fix, Geocoder: geocoder}
}

func (d *DeviceLocation) RequestPermission(ctx context.Context) (bool, error) {
	return d.Fix.PermissionGranted, nil
}

func (d *DeviceLocation) CurrentPosition(ctx context.Context) (Coordinates, error) {
	if d.Fix.Latitude == nil || d.Fix.Longitude == nil {
		return Coordinates{}, errNoPosition
	}
	return Coordinates{Latitude: *d.Fix.Latitude, Longitude: *d.Fix.Longitude}, nil
}

func (d *DeviceLocation) ReverseGeocode(ctx context.Context, lat, lng float64) ([]models.Address, error) {
	return d.Geocoder.ReverseGeocode(ctx, lat, lng)
}

// NoGeocoder is used when no geocoding backend is configured.
type NoGeocoder struct{}

func (NoGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) ([]models.Address, error) {
	return nil, nil
}

// stepContext bounds a single capability call. A zero timeout leaves the
// parent context as is.
func stepContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
