package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/auth"
	"github.com/adedejiosvaldo/safecall/backend/internal/database"
	"github.com/adedejiosvaldo/safecall/backend/internal/services"
)

// Error kinds the HTTP layer adds on top of services.ErrorKind.
const (
	kindInvalidRequest = "InvalidRequest"
	kindNotFound       = "NotFound"
	kindConflict       = "Conflict"
	kindRateLimited    = "RateLimited"
	kindUnauthorized   = "Unauthorized"
)

// StatusForKind maps an orchestration failure onto an HTTP status.
func StatusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindPermissionDenied:
		return http.StatusForbidden
	case services.KindNoContacts:
		return http.StatusUnprocessableEntity
	case services.KindLocationUnavailable, services.KindSmsUnavailable, services.KindCannotDial:
		return http.StatusServiceUnavailable
	case services.KindRemoteStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

// respondServiceError writes the single failure outcome of an orchestration.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = &services.Error{Kind: services.KindUnknown, Message: err.Error(), Err: err}
	}
	status := StatusForKind(svcErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(svcErr.Kind)),
			zap.Error(err),
		)
	}
	fail(c, status, string(svcErr.Kind), svcErr.Error())
}

// respondStoreError covers the CRUD endpoints that talk to Postgres directly.
func respondStoreError(c *gin.Context, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, kindNotFound, op+": not found")
	case errors.Is(err, database.ErrDuplicate):
		fail(c, http.StatusConflict, kindConflict, op+": already exists")
	default:
		logger.Error(op+" failed", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusBadGateway, string(services.KindRemoteStore), op+" failed")
	}
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, kindInvalidRequest, err.Error())
}

// currentUserID reads the user the auth middleware attached. Routes using it
// are always mounted behind auth.Middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, kindUnauthorized, "not signed in")
		return uuid.Nil, false
	}
	return user.ID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, kindInvalidRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func named(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}
