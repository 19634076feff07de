package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/services"
)

type LocationSharer interface {
	ShareLocation(ctx context.Context, userID uuid.UUID, provider services.LocationProvider, explicit []string) (*services.ShareResult, error)
}

type EmergencyTrigger interface {
	Trigger(ctx context.Context, userID uuid.UUID, provider services.LocationProvider) (*services.EmergencyResult, error)
	Simulate(ctx context.Context, userID uuid.UUID, provider services.LocationProvider) (*services.EmergencyResult, error)
}

// SafetyHandler exposes the location-share and emergency orchestrations.
type SafetyHandler struct {
	share      LocationSharer
	emergency  EmergencyTrigger
	geocoder   services.Geocoder
	limiter    RateLimiter
	shareLimit Limit
	logger     *zap.Logger
}

func NewSafetyHandler(
	share LocationSharer,
	emergency EmergencyTrigger,
	geocoder services.Geocoder,
	limiter RateLimiter,
	shareLimit Limit,
	logger *zap.Logger,
) *SafetyHandler {
	RegisterValidators()
	return &SafetyHandler{
		share:      share,
		emergency:  emergency,
		geocoder:   geocoder,
		limiter:    limiter,
		shareLimit: shareLimit,
		logger:     named(logger, "safety"),
	}
}

// ShareLocationRequest carries the device's fix. Contacts, when present,
// replaces the stored contact list. An empty array means nobody.
type ShareLocationRequest struct {
	Fix      services.ReportedFix `json:"fix"`
	Contacts []string             `json:"contacts" binding:"omitempty,dive,phone"`
}

type EmergencyRequest struct {
	Fix services.ReportedFix `json:"fix"`
}

// POST /v1/location/share
func (h *SafetyHandler) ShareLocation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !allow(c, h.limiter, h.logger, "share:"+userID.String(), h.shareLimit) {
		return
	}

	var req ShareLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	provider := services.NewDeviceLocation(req.Fix, h.geocoder)
	result, err := h.share.ShareLocation(c.Request.Context(), userID, provider, req.Contacts)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// POST /v1/emergency
func (h *SafetyHandler) TriggerEmergency(c *gin.Context) {
	h.runEmergency(c, h.emergency.Trigger)
}

// POST /v1/emergency/simulate
func (h *SafetyHandler) SimulateEmergency(c *gin.Context) {
	h.runEmergency(c, h.emergency.Simulate)
}

type emergencyFunc func(ctx context.Context, userID uuid.UUID, provider services.LocationProvider) (*services.EmergencyResult, error)

// runEmergency is deliberately not rate limited; a user in danger may retry.
func (h *SafetyHandler) runEmergency(c *gin.Context, run emergencyFunc) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req EmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	provider := services.NewDeviceLocation(req.Fix, h.geocoder)
	result, err := run(c.Request.Context(), userID, provider)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
