package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

type shareFixture struct {
	contacts  *fakeContacts
	profiles  *fakeProfiles
	incidents *fakeIncidents
	messenger *fakeMessenger
	notifier  *fakeNotifier
	svc       *LocationShareService
}

func newShareFixture() *shareFixture {
	f := &shareFixture{
		contacts:  &fakeContacts{contacts: scenarioContacts()},
		profiles:  &fakeProfiles{},
		incidents: &fakeIncidents{},
		messenger: &fakeMessenger{},
		notifier:  &fakeNotifier{},
	}
	f.svc = NewLocationShareService(Deps{
		Contacts:  f.contacts,
		Profiles:  f.profiles,
		Incidents: f.incidents,
		Messenger: f.messenger,
		Notifier:  f.notifier,
		Now:       clock,
		TimeZone:  fixedNow.Location(),
	})
	return f
}

func TestShareLocationScenario(t *testing.T) {
	f := newShareFixture()

	res, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(37.0, -122.0, models.Address{Street: "Main St"}), nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Location shared successfully", res.Message)
	assert.Equal(t, 2, res.Recipients)

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, []string{"+15551230000", "+15551230001"}, f.messenger.sent[0].recipients)
	assert.Equal(t,
		"I feel unsafe. My location: https://maps.google.com/?q=37,-122\n\nAddress: Main St\nTime: 10/14/2026, 3:04:05 PM",
		f.messenger.sent[0].body,
	)

	require.Len(t, f.incidents.logged, 1)
	inc := f.incidents.logged[0]
	assert.Equal(t, models.IncidentLocationShare, inc.IncidentType)
	assert.Equal(t, "Shared with 2 contacts", inc.Notes)
	assert.Equal(t, 37.0, *inc.LocationLat)
	assert.Equal(t, "Main St", *inc.LocationAddress)
}

func TestShareLocationUsesProfileTemplate(t *testing.T) {
	f := newShareFixture()
	f.profiles.profile = &models.UserProfile{EmergencyMessage: "Come get me:", PushToken: "device-token"}

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(6.5244, 3.3792), nil)
	require.NoError(t, err)

	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].body, "Come get me: https://maps.google.com/?q=6.5244,3.3792")
	assert.Contains(t, f.messenger.sent[0].body, "Address: Unknown location")
	assert.Equal(t, []string{"device-token"}, f.notifier.tokens)
}

func TestShareLocationProfileFailureFallsBack(t *testing.T) {
	f := newShareFixture()
	f.profiles.err = errors.New("profile table gone")

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), nil)
	require.NoError(t, err)
	assert.Contains(t, f.messenger.sent[0].body, DefaultShareMessage)
}

func TestShareLocationNoContacts(t *testing.T) {
	f := newShareFixture()
	f.contacts.contacts = nil
	p := newProvider(37, -122)

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoContacts))
	assert.Contains(t, err.Error(), "No emergency contacts")

	assert.Equal(t, []string{"permission", "position", "geocode"}, p.calls, "location is resolved first")
	assert.Empty(t, f.messenger.sent)
	assert.Zero(t, f.messenger.availCalls)
	assert.Empty(t, f.incidents.logged)
}

func TestShareLocationEmptyExplicitList(t *testing.T) {
	f := newShareFixture()

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), []string{})
	assert.True(t, errors.Is(err, ErrNoContacts))
	assert.Zero(t, f.contacts.calls, "a supplied list is used as is")
}

func TestShareLocationExplicitContacts(t *testing.T) {
	f := newShareFixture()

	res, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), []string{"+15550000001", " "})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recipients)
	assert.Zero(t, f.contacts.calls)
	assert.Equal(t, []string{"+15550000001"}, f.messenger.sent[0].recipients)
}

func TestShareLocationLocationFailureShortCircuits(t *testing.T) {
	f := newShareFixture()
	p := newProvider(1, 2)
	p.granted = false

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), p, nil)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.Zero(t, f.contacts.calls)
	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.incidents.logged)
}

func TestShareLocationContactStoreFailure(t *testing.T) {
	f := newShareFixture()
	f.contacts.err = errors.New("connection refused")

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), nil)
	assert.Equal(t, KindRemoteStore, KindOf(err))
	assert.Empty(t, f.messenger.sent)
}

func TestShareLocationSmsUnavailable(t *testing.T) {
	f := newShareFixture()
	f.messenger.unavailable = true

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSmsUnavailable))
	assert.Contains(t, err.Error(), "SMS not available")
	assert.Empty(t, f.messenger.sent)
	assert.Len(t, f.incidents.logged, 1, "the incident is logged before availability is checked")
}

func TestShareLocationSendFailure(t *testing.T) {
	f := newShareFixture()
	f.messenger.sendErr = errors.New("twilio down")

	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), nil)
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Contains(t, err.Error(), "twilio down")
	assert.Empty(t, f.notifier.tokens)
}

func TestShareLocationIncidentFailureIsIgnored(t *testing.T) {
	for _, failing := range []bool{false, true} {
		f := newShareFixture()
		f.incidents.failing = failing

		res, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), nil)
		require.NoError(t, err, "failing=%v", failing)
		assert.True(t, res.Success)
		assert.Len(t, f.messenger.sent, 1)
	}

	f := newShareFixture()
	f.incidents.failing = true
	f.contacts.contacts = nil
	_, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), nil)
	assert.True(t, errors.Is(err, ErrNoContacts), "logging never changes a failure either")
}

func TestShareLocationPushFailureIsIgnored(t *testing.T) {
	f := newShareFixture()
	f.profiles.profile = &models.UserProfile{PushToken: "tok"}
	f.notifier.err = errors.New("fcm down")

	res, err := f.svc.ShareLocation(context.Background(), uuid.New(), newProvider(1, 2), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}
