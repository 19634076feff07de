package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

const (
	defaultIncidentLimit = 50
	maxIncidentLimit     = 200
)

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.UserProfile, error)
}

type IncidentReader interface {
	ListIncidents(ctx context.Context, userID uuid.UUID, limit int) ([]models.SafetyIncident, error)
}

// ProfileHandler serves the per-user profile and the incident history.
type ProfileHandler struct {
	profiles  ProfileRepository
	incidents IncidentReader
	logger    *zap.Logger
}

func NewProfileHandler(profiles ProfileRepository, incidents IncidentReader, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles:  profiles,
		incidents: incidents,
		logger:    named(logger, "profile"),
	}
}

// GET /v1/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondStoreError(c, h.logger, "get profile", err)
		return
	}
	if profile == nil {
		profile = &models.UserProfile{UserID: userID}
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// PUT /v1/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var upd models.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, err)
		return
	}
	for _, f := range []*string{upd.DisplayName, upd.EmergencyMessage, upd.PushToken} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}

	profile, err := h.profiles.UpsertProfile(c.Request.Context(), userID, upd)
	if err != nil {
		respondStoreError(c, h.logger, "update profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GET /v1/incidents?limit=N
func (h *ProfileHandler) ListIncidents(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := defaultIncidentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, kindInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxIncidentLimit)
	}

	incidents, err := h.incidents.ListIncidents(c.Request.Context(), userID, limit)
	if err != nil {
		respondStoreError(c, h.logger, "list incidents", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"incidents": incidents})
}
