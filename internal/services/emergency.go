package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/config"
	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

// EmergencyResult is the outcome of Activate or Simulate. Details is only set
// by Simulate.
type EmergencyResult struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Simulated bool              `json:"simulated"`
	Details   *EmergencyPreview `json:"details,omitempty"`
}

// EmergencyPreview describes what a real activation would do.
type EmergencyPreview struct {
	WouldCall    string `json:"would_call"`
	WouldContact int    `json:"would_contact"`
	Location     string `json:"location"`
}

// EmergencyService texts the user's contacts and dials the emergency number.
type EmergencyService struct {
	mode     config.Mode
	number   string
	deps     Deps
	resolver *LocationResolver
	messages messageBuilder
	logger   *zap.Logger
}

func NewEmergencyService(mode config.Mode, emergencyNumber string, deps Deps) *EmergencyService {
	deps = deps.withDefaults()
	return &EmergencyService{
		mode:     mode,
		number:   emergencyNumber,
		deps:     deps,
		resolver: NewLocationResolver(deps.Now, deps.CapabilityTimeout),
		messages: messageBuilder{now: deps.Now, loc: deps.TimeZone},
		logger:   deps.Logger.Named("emergency"),
	}
}

// Trigger runs the real activation in release mode and a simulation otherwise.
func (s *EmergencyService) Trigger(ctx context.Context, userID uuid.UUID, provider LocationProvider) (*EmergencyResult, error) {
	if s.mode == config.ModeRelease {
		return s.Activate(ctx, userID, provider)
	}
	return s.Simulate(ctx, userID, provider)
}

// emergencyNumber is the number dialed for this jurisdiction.
func (s *EmergencyService) emergencyNumber() string {
	return s.number
}

// Activate texts contacts when possible and always tries to reach the dial
// step. Only location failures and a refused dial are reported.
func (s *EmergencyService) Activate(ctx context.Context, userID uuid.UUID, provider LocationProvider) (*EmergencyResult, error) {
	res, err := s.activate(ctx, userID, provider)
	observe("emergency_activate", err)
	if err != nil {
		s.logger.Error("emergency activation failed",
			zap.String("user_id", userID.String()),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("emergency activated", zap.String("user_id", userID.String()))
	return res, nil
}

func (s *EmergencyService) activate(ctx context.Context, userID uuid.UUID, provider LocationProvider) (*EmergencyResult, error) {
	snap, err := s.resolver.Resolve(ctx, provider)
	if err != nil {
		return nil, err
	}

	recipients := s.recipients(ctx, userID)

	profile := loadProfile(ctx, s.deps, s.logger, userID)
	body := s.messages.build(profile.EmergencyMessage, DefaultEmergencyMessage, snap)

	logIncident(ctx, s.deps, s.logger, "emergency_activate", userID,
		incidentFor(models.IncidentEmergencyCall, snap, fmt.Sprintf("Emergency activated. Contacted %d contacts", len(recipients))))

	if len(recipients) > 0 {
		s.sendBestEffort(ctx, userID, recipients, body)
	}

	uri := "tel:" + s.emergencyNumber()

	stepCtx, cancel := stepContext(ctx, s.deps.CapabilityTimeout)
	canOpen, err := s.deps.Dialer.CanOpen(stepCtx, uri)
	cancel()
	if err != nil {
		return nil, cannotDial(err)
	}
	if !canOpen {
		return nil, cannotDial(nil)
	}

	stepCtx, cancel = stepContext(ctx, s.deps.CapabilityTimeout)
	err = s.deps.Dialer.Open(stepCtx, uri)
	cancel()
	if err != nil {
		return nil, cannotDial(err)
	}

	notifyDevice(ctx, s.deps, s.logger, "emergency_activate", profile,
		"Emergency activated", fmt.Sprintf("Calling %s. %d contacts notified", s.emergencyNumber(), len(recipients)))

	return &EmergencyResult{Success: true, Message: "Emergency services called"}, nil
}

// Simulate resolves the location and contacts and reports what Activate would
// do. It never sends SMS or dials.
func (s *EmergencyService) Simulate(ctx context.Context, userID uuid.UUID, provider LocationProvider) (*EmergencyResult, error) {
	snap, err := s.resolver.Resolve(ctx, provider)
	observe("emergency_simulate", err)
	if err != nil {
		return nil, err
	}

	recipients := s.recipients(ctx, userID)

	return &EmergencyResult{
		Success:   true,
		Message:   "TEST MODE: Emergency would be activated",
		Simulated: true,
		Details: &EmergencyPreview{
			WouldCall:    s.emergencyNumber(),
			WouldContact: len(recipients),
			Location:     snap.Address,
		},
	}, nil
}

// recipients may be empty. A store failure is logged and treated as no
// contacts so the dial step is still reached.
func (s *EmergencyService) recipients(ctx context.Context, userID uuid.UUID) []string {
	stepCtx, cancel := stepContext(ctx, s.deps.CapabilityTimeout)
	defer cancel()
	contacts, err := s.deps.Contacts.ListContacts(stepCtx, userID)
	if err != nil {
		bestEffortFailuresTotal.WithLabelValues("emergency", "load_contacts").Inc()
		s.logger.Warn("failed to load emergency contacts",
			zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	return cleanRecipients(models.PhoneNumbers(contacts))
}

func (s *EmergencyService) sendBestEffort(ctx context.Context, userID uuid.UUID, recipients []string, body string) {
	stepCtx, cancel := stepContext(ctx, s.deps.CapabilityTimeout)
	available := s.deps.Messenger.Available(stepCtx)
	cancel()
	if !available {
		s.logger.Warn("SMS not available, skipping contacts", zap.String("user_id", userID.String()))
		return
	}

	stepCtx, cancel = stepContext(ctx, s.deps.CapabilityTimeout)
	defer cancel()
	if err := s.deps.Messenger.Send(stepCtx, recipients, body); err != nil {
		bestEffortFailuresTotal.WithLabelValues("emergency_activate", "send_sms").Inc()
		s.logger.Warn("failed to send emergency SMS",
			zap.String("user_id", userID.String()),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
	}
}
