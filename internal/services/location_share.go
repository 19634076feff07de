package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

const (
	DefaultShareMessage     = "I feel unsafe. My location:"
	DefaultEmergencyMessage = "EMERGENCY: I need help immediately. My location:"
)

// Deps are the collaborators shared by the orchestrators. Notifier may be nil.
type Deps struct {
	Contacts  ContactStore
	Profiles  ProfileStore
	Incidents IncidentLogger
	Messenger Messenger
	Dialer    Dialer
	Notifier  Notifier
	Logger    *zap.Logger

	Now               func() time.Time
	TimeZone          *time.Location
	CapabilityTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// ShareResult is the outcome of a successful location share.
type ShareResult struct {
	Success    bool                     `json:"success"`
	Message    string                   `json:"message"`
	Recipients int                      `json:"recipients"`
	Location   *models.LocationSnapshot `json:"location"`
}

// LocationShareService sends the user's current location to their contacts.
type LocationShareService struct {
	deps     Deps
	resolver *LocationResolver
	messages messageBuilder
	logger   *zap.Logger
}

func NewLocationShareService(deps Deps) *LocationShareService {
	deps = deps.withDefaults()
	return &LocationShareService{
		deps:     deps,
		resolver: NewLocationResolver(deps.Now, deps.CapabilityTimeout),
		messages: messageBuilder{now: deps.Now, loc: deps.TimeZone},
		logger:   deps.Logger.Named("location_share"),
	}
}

// ShareLocation resolves the location, then texts it to explicit when it is
// non-nil, or to the user's stored contacts otherwise. Nothing is composed or
// sent before the location and recipient list are known.
func (s *LocationShareService) ShareLocation(ctx context.Context, userID uuid.UUID, provider LocationProvider, explicit []string) (*ShareResult, error) {
	res, err := s.share(ctx, userID, provider, explicit)
	observe("location_share", err)
	if err != nil {
		s.logger.Info("location share failed",
			zap.String("user_id", userID.String()),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}
	return res, nil
}

func (s *LocationShareService) share(ctx context.Context, userID uuid.UUID, provider LocationProvider, explicit []string) (*ShareResult, error) {
	snap, err := s.resolver.Resolve(ctx, provider)
	if err != nil {
		return nil, err
	}

	recipients := explicit
	if recipients == nil {
		stepCtx, cancel := stepContext(ctx, s.deps.CapabilityTimeout)
		contacts, err := s.deps.Contacts.ListContacts(stepCtx, userID)
		cancel()
		if err != nil {
			return nil, remoteStore("load emergency contacts", err)
		}
		recipients = models.PhoneNumbers(contacts)
	}
	recipients = cleanRecipients(recipients)
	if len(recipients) == 0 {
		return nil, noContacts()
	}

	profile := loadProfile(ctx, s.deps, s.logger, userID)
	body := s.messages.build(profile.EmergencyMessage, DefaultShareMessage, snap)

	logIncident(ctx, s.deps, s.logger, "location_share", userID,
		incidentFor(models.IncidentLocationShare, snap, fmt.Sprintf("Shared with %d contacts", len(recipients))))

	stepCtx, cancel := stepContext(ctx, s.deps.CapabilityTimeout)
	available := s.deps.Messenger.Available(stepCtx)
	cancel()
	if !available {
		return nil, smsUnavailable()
	}

	stepCtx, cancel = stepContext(ctx, s.deps.CapabilityTimeout)
	err = s.deps.Messenger.Send(stepCtx, recipients, body)
	cancel()
	if err != nil {
		return nil, asError("Failed to share location", err)
	}

	notifyDevice(ctx, s.deps, s.logger, "location_share", profile,
		"Location shared", fmt.Sprintf("Your location was sent to %d contacts", len(recipients)))

	return &ShareResult{
		Success:    true,
		Message:    "Location shared successfully",
		Recipients: len(recipients),
		Location:   snap,
	}, nil
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// loadProfile never fails; a missing or unreadable profile yields an empty one
// so the default template is used.
func loadProfile(ctx context.Context, deps Deps, logger *zap.Logger, userID uuid.UUID) *models.UserProfile {
	if deps.Profiles == nil {
		return &models.UserProfile{UserID: userID}
	}
	stepCtx, cancel := stepContext(ctx, deps.CapabilityTimeout)
	defer cancel()
	profile, err := deps.Profiles.GetProfile(stepCtx, userID)
	if err != nil {
		logger.Warn("failed to load profile, using default message",
			zap.String("user_id", userID.String()), zap.Error(err))
		return &models.UserProfile{UserID: userID}
	}
	if profile == nil {
		return &models.UserProfile{UserID: userID}
	}
	return profile
}

// logIncident is best-effort: errors are logged and counted, never returned.
func logIncident(ctx context.Context, deps Deps, logger *zap.Logger, operation string, userID uuid.UUID, incident *models.SafetyIncident) {
	incident.UserID = userID
	stepCtx, cancel := stepContext(ctx, deps.CapabilityTimeout)
	defer cancel()
	if err := deps.Incidents.LogIncident(stepCtx, incident); err != nil {
		bestEffortFailuresTotal.WithLabelValues(operation, "log_incident").Inc()
		logger.Warn("failed to log safety incident",
			zap.String("user_id", userID.String()),
			zap.String("incident_type", string(incident.IncidentType)),
			zap.Error(err),
		)
	}
}

func notifyDevice(ctx context.Context, deps Deps, logger *zap.Logger, operation string, profile *models.UserProfile, title, body string) {
	if deps.Notifier == nil || profile.PushToken == "" {
		return
	}
	stepCtx, cancel := stepContext(ctx, deps.CapabilityTimeout)
	defer cancel()
	if err := deps.Notifier.Notify(stepCtx, profile.PushToken, title, body); err != nil {
		bestEffortFailuresTotal.WithLabelValues(operation, "push").Inc()
		logger.Warn("failed to push confirmation", zap.Error(err))
	}
}
