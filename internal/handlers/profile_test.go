package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

type memProfiles struct {
	profile *models.UserProfile
	upserts []models.ProfileUpdate
}

func (m *memProfiles) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	return m.profile, nil
}

func (m *memProfiles) UpsertProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.UserProfile, error) {
	m.upserts = append(m.upserts, upd)
	p := &models.UserProfile{UserID: userID}
	if upd.EmergencyMessage != nil {
		p.EmergencyMessage = *upd.EmergencyMessage
	}
	m.profile = p
	return p, nil
}

type stubIncidents struct {
	limit int
	err   error
}

func (s *stubIncidents) ListIncidents(ctx context.Context, userID uuid.UUID, limit int) ([]models.SafetyIncident, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []models.SafetyIncident{{ID: uuid.New(), UserID: userID, IncidentType: models.IncidentLocationShare}}, nil
}

func newProfileRouter(h *ProfileHandler) http.Handler {
	r, v1 := newTestRouter(newTestUser())
	v1.GET("/profile", h.GetProfile)
	v1.PUT("/profile", h.UpdateProfile)
	v1.GET("/incidents", h.ListIncidents)
	return r
}

func TestProfileDefaultsAndUpsert(t *testing.T) {
	profiles := &memProfiles{}
	router := newProfileRouter(NewProfileHandler(profiles, &stubIncidents{}, nil))

	w := doJSON(t, router, http.MethodGet, "/v1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["profile"].(map[string]interface{})
	assert.Equal(t, "", profile["emergency_message"])

	w = doJSON(t, router, http.MethodPut, "/v1/profile", map[string]string{"emergency_message": "  Come find me: "})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, profiles.upserts, 1)
	assert.Equal(t, "Come find me:", *profiles.upserts[0].EmergencyMessage)
	assert.Nil(t, profiles.upserts[0].DisplayName)
}

func TestListIncidentsLimit(t *testing.T) {
	incidents := &stubIncidents{}
	router := newProfileRouter(NewProfileHandler(&memProfiles{}, incidents, nil))

	w := doJSON(t, router, http.MethodGet, "/v1/incidents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultIncidentLimit, incidents.limit)
	assert.Len(t, decode(t, w)["incidents"], 1)

	doJSON(t, router, http.MethodGet, "/v1/incidents?limit=5000", nil)
	assert.Equal(t, maxIncidentLimit, incidents.limit)

	w = doJSON(t, router, http.MethodGet, "/v1/incidents?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	incidents.err = errors.New("connection refused")
	w = doJSON(t, router, http.MethodGet, "/v1/incidents", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "RemoteStoreError", decode(t, w)["error"])
}
