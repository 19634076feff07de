package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

// UnknownLocation is the address used when reverse geocoding finds nothing.
const UnknownLocation = "Unknown location"

// LocationResolver turns a LocationProvider into a complete LocationSnapshot.
type LocationResolver struct {
	now     func() time.Time
	timeout time.Duration
}

func NewLocationResolver(now func() time.Time, timeout time.Duration) *LocationResolver {
	if now == nil {
		now = time.Now
	}
	return &LocationResolver{now: now, timeout: timeout}
}

// Resolve either returns a fully populated snapshot or a PermissionDenied /
// LocationUnavailable error.
func (lr *LocationResolver) Resolve(ctx context.Context, provider LocationProvider) (*models.LocationSnapshot, error) {
	stepCtx, cancel := stepContext(ctx, lr.timeout)
	granted, err := provider.RequestPermission(stepCtx)
	cancel()
	if err != nil {
		return nil, locationUnavailable(err)
	}
	if !granted {
		return nil, permissionDenied()
	}

	stepCtx, cancel = stepContext(ctx, lr.timeout)
	coords, err := provider.CurrentPosition(stepCtx)
	cancel()
	if err != nil {
		return nil, locationUnavailable(err)
	}

	stepCtx, cancel = stepContext(ctx, lr.timeout)
	addresses, err := provider.ReverseGeocode(stepCtx, coords.Latitude, coords.Longitude)
	cancel()
	if err != nil {
		return nil, locationUnavailable(err)
	}

	address := UnknownLocation
	if len(addresses) > 0 {
		if formatted := FormatAddress(addresses[0]); formatted != "" {
			address = formatted
		}
	}

	return &models.LocationSnapshot{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Address:   address,
		Timestamp: lr.now(),
	}, nil
}

// FormatAddress joins street, city and region, skipping empty parts.
func FormatAddress(a models.Address) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, a.Region} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// MapsLink builds a Google Maps link with the coordinates in their shortest
// exact decimal form, e.g. q=37,-122.
func MapsLink(lat, lng float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s", formatCoord(lat), formatCoord(lng))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LocalTimeLayout renders timestamps the way a US-locale phone shows them.
const LocalTimeLayout = "1/2/2006, 3:04:05 PM"

// messageBuilder renders the text sent to contacts.
type messageBuilder struct {
	now func() time.Time
	loc *time.Location
}

func (mb messageBuilder) build(template, fallback string, snap *models.LocationSnapshot) string {
	if strings.TrimSpace(template) == "" {
		template = fallback
	}
	loc := mb.loc
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("%s %s\n\nAddress: %s\nTime: %s",
		template,
		MapsLink(snap.Latitude, snap.Longitude),
		snap.Address,
		mb.now().In(loc).Format(LocalTimeLayout),
	)
}

func incidentFor(kind models.IncidentType, snap *models.LocationSnapshot, notes string) *models.SafetyIncident {
	lat, lng, addr := snap.Latitude, snap.Longitude, snap.Address
	return &models.SafetyIncident{
		IncidentType:    kind,
		LocationLat:     &lat,
		LocationLng:     &lng,
		LocationAddress: &addr,
		Timestamp:       snap.Timestamp,
		Notes:           notes,
	}
}
