package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/auth"
	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, bucket string, window time.Duration, limit int) (bool, error)
}

type PreferencesStore interface {
	GetLoginPreferences(ctx context.Context, deviceID string) (*models.LoginPreferences, error)
	SetLoginPreferences(ctx context.Context, deviceID string, prefs models.LoginPreferences) error
}

// Limit is a fixed-window request budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

type AuthHandler struct {
	auth        AuthService
	limiter     RateLimiter
	signInLimit Limit
	prefs       PreferencesStore
	logger      *zap.Logger
}

func NewAuthHandler(svc AuthService, limiter RateLimiter, signInLimit Limit, prefs PreferencesStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        svc,
		limiter:     limiter,
		signInLimit: signInLimit,
		prefs:       prefs,
		logger:      named(logger, "auth"),
	}
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /v1/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	session, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// POST /v1/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	if !allow(c, h.limiter, h.logger, "signin:"+c.ClientIP(), h.signInLimit) {
		return
	}

	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GET /v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, kindUnauthorized, "not signed in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// POST /v1/auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), auth.TokenFromContext(c)); err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		badRequest(c, err)
	case errors.Is(err, auth.ErrEmailTaken):
		fail(c, http.StatusConflict, kindConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, kindUnauthorized, err.Error())
	default:
		h.logger.Error("auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Unknown", "authentication failed")
	}
}

// GET /v1/devices/:device_id/login-preferences
func (h *AuthHandler) GetLoginPreferences(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Param("device_id"))
	if deviceID == "" {
		fail(c, http.StatusBadRequest, kindInvalidRequest, "invalid device_id")
		return
	}

	prefs, err := h.prefs.GetLoginPreferences(c.Request.Context(), deviceID)
	if err != nil {
		respondStoreError(c, h.logger, "get login preferences", err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// PUT /v1/devices/:device_id/login-preferences
func (h *AuthHandler) SetLoginPreferences(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Param("device_id"))
	if deviceID == "" {
		fail(c, http.StatusBadRequest, kindInvalidRequest, "invalid device_id")
		return
	}

	var upd models.LoginPreferencesUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, err)
		return
	}

	stored, err := h.prefs.GetLoginPreferences(c.Request.Context(), deviceID)
	if err != nil {
		respondStoreError(c, h.logger, "get login preferences", err)
		return
	}
	prefs := *stored
	if upd.RememberMe != nil {
		prefs.RememberMe = *upd.RememberMe
	}
	if upd.Email != nil {
		prefs.Email = strings.TrimSpace(*upd.Email)
	}
	if !prefs.RememberMe {
		prefs.Email = ""
	}

	if err := h.prefs.SetLoginPreferences(c.Request.Context(), deviceID, prefs); err != nil {
		respondStoreError(c, h.logger, "save login preferences", err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// allow enforces limit on bucket. A limiter outage lets the request through.
func allow(c *gin.Context, limiter RateLimiter, logger *zap.Logger, bucket string, limit Limit) bool {
	if limiter == nil || limit.Requests <= 0 {
		return true
	}
	ok, err := limiter.CheckRateLimit(c.Request.Context(), bucket, limit.Window, limit.Requests)
	if err != nil {
		logger.Warn("rate limit check failed", zap.String("bucket", bucket), zap.Error(err))
		return true
	}
	if !ok {
		fail(c, http.StatusTooManyRequests, kindRateLimited, "too many requests, try again later")
		return false
	}
	return true
}
