package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adedejiosvaldo/safecall/backend/internal/config"
	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

type emergencyFixture struct {
	contacts  *fakeContacts
	incidents *fakeIncidents
	messenger *fakeMessenger
	dialer    *fakeDialer
	svc       *EmergencyService
}

func newEmergencyFixture(mode config.Mode) *emergencyFixture {
	f := &emergencyFixture{
		contacts:  &fakeContacts{contacts: scenarioContacts()},
		incidents: &fakeIncidents{},
		messenger: &fakeMessenger{},
		dialer:    &fakeDialer{},
	}
	f.svc = NewEmergencyService(mode, "911", Deps{
		Contacts:  f.contacts,
		Profiles:  &fakeProfiles{},
		Incidents: f.incidents,
		Messenger: f.messenger,
		Dialer:    f.dialer,
		Now:       clock,
		TimeZone:  fixedNow.Location(),
	})
	return f
}

func TestActivateEmergency(t *testing.T) {
	f := newEmergencyFixture(config.ModeRelease)

	res, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(37, -122, models.Address{Street: "Main St"}))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Emergency services called", res.Message)
	assert.False(t, res.Simulated)

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t,
		"EMERGENCY: I need help immediately. My location: https://maps.google.com/?q=37,-122\n\nAddress: Main St\nTime: 10/14/2026, 3:04:05 PM",
		f.messenger.sent[0].body,
	)
	assert.Equal(t, []string{"tel:911"}, f.dialer.opened)

	require.Len(t, f.incidents.logged, 1)
	assert.Equal(t, models.IncidentEmergencyCall, f.incidents.logged[0].IncidentType)
	assert.Equal(t, "Emergency activated. Contacted 2 contacts", f.incidents.logged[0].Notes)
}

func TestActivateEmergencyWithoutContacts(t *testing.T) {
	f := newEmergencyFixture(config.ModeRelease)
	f.contacts.contacts = nil

	res, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(1, 2))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, f.messenger.sent)
	assert.Zero(t, f.messenger.availCalls)
	assert.Equal(t, []string{"tel:911"}, f.dialer.opened)
	assert.Equal(t, "Emergency activated. Contacted 0 contacts", f.incidents.logged[0].Notes)
}

func TestActivateEmergencyContactStoreFailureStillDials(t *testing.T) {
	f := newEmergencyFixture(config.ModeRelease)
	f.contacts.err = errors.New("db down")

	_, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"tel:911"}, f.dialer.opened)
}

func TestActivateEmergencySmsFailuresNeverBlockTheCall(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		f := newEmergencyFixture(config.ModeRelease)
		f.messenger.unavailable = true

		_, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(1, 2))
		require.NoError(t, err)
		assert.Empty(t, f.messenger.sent)
		assert.Equal(t, []string{"tel:911"}, f.dialer.opened)
	})

	t.Run("send error", func(t *testing.T) {
		f := newEmergencyFixture(config.ModeRelease)
		f.messenger.sendErr = errors.New("twilio down")

		_, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(1, 2))
		require.NoError(t, err)
		assert.Equal(t, []string{"tel:911"}, f.dialer.opened)
	})
}

func TestActivateEmergencyIncidentFailureIsIgnored(t *testing.T) {
	f := newEmergencyFixture(config.ModeRelease)
	f.incidents.failing = true

	res, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(1, 2))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, f.messenger.sent, 1)
}

func TestActivateEmergencyCannotDial(t *testing.T) {
	f := newEmergencyFixture(config.ModeRelease)
	f.dialer.cannotOpen = true

	_, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCannotDial))
	assert.Contains(t, err.Error(), "phone")
	assert.Empty(t, f.dialer.opened)
	assert.Len(t, f.messenger.sent, 1, "contacts are texted before dialing")
}

func TestActivateEmergencyOpenFailure(t *testing.T) {
	f := newEmergencyFixture(config.ModeRelease)
	f.dialer.openErr = errors.New("call rejected")

	_, err := f.svc.Activate(context.Background(), uuid.New(), newProvider(1, 2))
	assert.Equal(t, KindCannotDial, KindOf(err))
	assert.Contains(t, err.Error(), "call rejected")
}

func TestActivateEmergencyLocationFailureAborts(t *testing.T) {
	f := newEmergencyFixture(config.ModeRelease)
	p := newProvider(1, 2)
	p.granted = false

	_, err := f.svc.Activate(context.Background(), uuid.New(), p)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.Zero(t, f.contacts.calls)
	assert.Empty(t, f.messenger.sent)
	assert.Zero(t, f.dialer.canCalls)
}

func TestSimulateEmergencyNeverTouchesMessengerOrDialer(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		f := newEmergencyFixture(config.ModeTest)
		f.contacts.contacts = scenarioContacts()[:n]

		res, err := f.svc.Simulate(context.Background(), uuid.New(), newProvider(37, -122, models.Address{Street: "Main St"}))
		require.NoError(t, err)
		assert.True(t, res.Simulated)
		assert.Equal(t, "TEST MODE: Emergency would be activated", res.Message)
		assert.Equal(t, &EmergencyPreview{WouldCall: "911", WouldContact: n, Location: "Main St"}, res.Details)

		assert.Zero(t, f.messenger.availCalls)
		assert.Empty(t, f.messenger.sent)
		assert.Zero(t, f.dialer.canCalls)
		assert.Empty(t, f.dialer.opened)
		assert.Empty(t, f.incidents.logged)
	}
}

func TestTriggerFollowsMode(t *testing.T) {
	test := newEmergencyFixture(config.ModeTest)
	res, err := test.svc.Trigger(context.Background(), uuid.New(), newProvider(1, 2))
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	assert.Empty(t, test.dialer.opened)

	release := newEmergencyFixture(config.ModeRelease)
	res, err = release.svc.Trigger(context.Background(), uuid.New(), newProvider(1, 2))
	require.NoError(t, err)
	assert.False(t, res.Simulated)
	assert.Equal(t, []string{"tel:911"}, release.dialer.opened)
}
