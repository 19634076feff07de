package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

type ContactRepository interface {
	ListContacts(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error)
	CreateContact(ctx context.Context, contact *models.EmergencyContact) error
	UpdateContact(ctx context.Context, userID, contactID uuid.UUID, upd models.ContactUpdate) (*models.EmergencyContact, error)
	DeleteContact(ctx context.Context, userID, contactID uuid.UUID) error
}

type ContactsHandler struct {
	contacts ContactRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewContactsHandler(contacts ContactRepository, logger *zap.Logger) *ContactsHandler {
	RegisterValidators()
	return &ContactsHandler{
		contacts: contacts,
		logger:   named(logger, "contacts"),
		now:      time.Now,
	}
}

type AddContactRequest struct {
	Name         string `json:"name" binding:"required"`
	PhoneNumber  string `json:"phone_number" binding:"required,phone"`
	Relationship string `json:"relationship" binding:"required"`
	IsPrimary    bool   `json:"is_primary"`
}

func (r *AddContactRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Relationship = strings.TrimSpace(r.Relationship)
}

type UpdateContactRequest struct {
	Name         *string `json:"name"`
	PhoneNumber  *string `json:"phone_number"`
	Relationship *string `json:"relationship"`
	IsPrimary    *bool   `json:"is_primary"`
}

// toUpdate trims the supplied fields. A field that is present must still be
// non-empty after trimming.
func (r UpdateContactRequest) toUpdate() (models.ContactUpdate, error) {
	upd := models.ContactUpdate{IsPrimary: r.IsPrimary}
	for _, f := range []struct {
		name string
		in   *string
		out  **string
	}{
		{"name", r.Name, &upd.Name},
		{"phone_number", r.PhoneNumber, &upd.PhoneNumber},
		{"relationship", r.Relationship, &upd.Relationship},
	} {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if v == "" {
			return upd, errors.New(f.name + " must not be empty")
		}
		*f.out = &v
	}
	if upd.PhoneNumber != nil && !validPhone(*upd.PhoneNumber) {
		return upd, errors.New("phone_number may only contain digits, spaces, dashes, plus signs and parentheses")
	}
	return upd, nil
}

// GET /v1/contacts
func (h *ContactsHandler) ListContacts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contacts, err := h.contacts.ListContacts(c.Request.Context(), userID)
	if err != nil {
		respondStoreError(c, h.logger, "list contacts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// POST /v1/contacts
func (h *ContactsHandler) AddContact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req AddContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}
	// Whitespace-only values pass the first pass, so validate again once trimmed.
	req.normalize()
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	now := h.now()
	contact := &models.EmergencyContact{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         req.Name,
		PhoneNumber:  req.PhoneNumber,
		Relationship: req.Relationship,
		IsPrimary:    req.IsPrimary,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.contacts.CreateContact(c.Request.Context(), contact); err != nil {
		respondStoreError(c, h.logger, "add contact", err)
		return
	}

	h.logger.Info("contact added", zap.String("user_id", userID.String()), zap.String("contact_id", contact.ID.String()))
	c.JSON(http.StatusCreated, gin.H{"contact": contact})
}

// PUT /v1/contacts/:id
func (h *ContactsHandler) UpdateContact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	contactID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		badRequest(c, err)
		return
	}

	contact, err := h.contacts.UpdateContact(c.Request.Context(), userID, contactID, upd)
	if err != nil {
		respondStoreError(c, h.logger, "update contact", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contact": contact})
}

// DELETE /v1/contacts/:id
func (h *ContactsHandler) DeleteContact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	contactID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.contacts.DeleteContact(c.Request.Context(), userID, contactID); err != nil {
		respondStoreError(c, h.logger, "delete contact", err)
		return
	}

	c.Status(http.StatusNoContent)
}
