package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

var fixedNow = time.Date(2026, 10, 14, 15, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeProvider struct {
	granted   bool
	permErr   error
	coords    Coordinates
	posErr    error
	addresses []models.Address
	geoErr    error

	calls []string
}

func newProvider(lat, lng float64, addrs ...models.Address) *fakeProvider {
	return &fakeProvider{granted: true, coords: Coordinates{Latitude: lat, Longitude: lng}, addresses: addrs}
}

func (p *fakeProvider) RequestPermission(ctx context.Context) (bool, error) {
	p.calls = append(p.calls, "permission")
	return p.granted, p.permErr
}

func (p *fakeProvider) CurrentPosition(ctx context.Context) (Coordinates, error) {
	p.calls = append(p.calls, "position")
	return p.coords, p.posErr
}

func (p *fakeProvider) ReverseGeocode(ctx context.Context, lat, lng float64) ([]models.Address, error) {
	p.calls = append(p.calls, "geocode")
	return p.addresses, p.geoErr
}

type fakeContacts struct {
	contacts []models.EmergencyContact
	err      error
	calls    int
}

func (f *fakeContacts) ListContacts(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error) {
	f.calls++
	return f.contacts, f.err
}

type fakeProfiles struct {
	profile *models.UserProfile
	err     error
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	return f.profile, f.err
}

type fakeIncidents struct {
	mu      sync.Mutex
	logged  []models.SafetyIncident
	failing bool
}

func (f *fakeIncidents) LogIncident(ctx context.Context, incident *models.SafetyIncident) error {
	if f.failing {
		return errors.New("incident table unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, *incident)
	return nil
}

type sentMessage struct {
	recipients []string
	body       string
}

type fakeMessenger struct {
	unavailable bool
	sendErr     error
	sent        []sentMessage
	availCalls  int
}

func (f *fakeMessenger) Available(ctx context.Context) bool {
	f.availCalls++
	return !f.unavailable
}

func (f *fakeMessenger) Send(ctx context.Context, recipients []string, body string) error {
	f.sent = append(f.sent, sentMessage{recipients: recipients, body: body})
	return f.sendErr
}

type fakeDialer struct {
	cannotOpen bool
	openErr    error
	opened     []string
	canCalls   int
}

func (f *fakeDialer) CanOpen(ctx context.Context, uri string) (bool, error) {
	f.canCalls++
	return !f.cannotOpen, nil
}

func (f *fakeDialer) Open(ctx context.Context, uri string) error {
	f.opened = append(f.opened, uri)
	return f.openErr
}

type fakeNotifier struct {
	tokens []string
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, token, title, body string) error {
	f.tokens = append(f.tokens, token)
	return f.err
}

func scenarioContacts() []models.EmergencyContact {
	return []models.EmergencyContact{
		{ID: uuid.New(), Name: "A", PhoneNumber: "+15551230000", IsPrimary: true},
		{ID: uuid.New(), Name: "B", PhoneNumber: "+15551230001", IsPrimary: false},
	}
}
