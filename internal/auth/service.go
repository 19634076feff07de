package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/database"
	"github.com/adedejiosvaldo/safecall/backend/internal/models"
	"github.com/adedejiosvaldo/safecall/backend/internal/utils"
)

const minPasswordLength = 8

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnauthorized       = errors.New("unauthorized")
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type TokenStore interface {
	RevokeToken(ctx context.Context, fingerprint string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, fingerprint string) (bool, error)
}

type SessionPublisher interface {
	PublishSession(ctx context.Context, payload []byte) error
}

type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// SessionEvent is published whenever a user signs in or out.
type SessionEvent struct {
	Type    EventType `json:"type"`
	UserID  uuid.UUID `json:"user_id"`
	TokenID string    `json:"token_id,omitempty"`
	At      time.Time `json:"at"`
}

// Session is what a successful sign-in or sign-up returns to the client.
type Session struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

type Service struct {
	users     UserStore
	tokens    TokenStore
	publisher SessionPublisher
	issuer    *TokenIssuer
	secret    string
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(users UserStore, tokens TokenStore, publisher SessionPublisher, issuer *TokenIssuer, secret string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		publisher: publisher,
		issuer:    issuer,
		secret:    secret,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	return s.startSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user *models.User) (*Session, error) {
	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, SessionEvent{Type: EventSignedIn, UserID: user.ID})
	return &Session{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// SignOut denylists the token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ErrUnauthorized
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if err := s.tokens.RevokeToken(ctx, s.fingerprint(token), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.publish(ctx, SessionEvent{Type: EventSignedOut, UserID: userID, TokenID: claims.ID})
	return nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, *Claims, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}

	revoked, err := s.tokens.IsTokenRevoked(ctx, s.fingerprint(token))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, nil, ErrUnauthorized
	}

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *Service) fingerprint(token string) string {
	return utils.SignString(token, s.secret)
}

// publish is best-effort; a lost event only delays session teardown elsewhere.
func (s *Service) publish(ctx context.Context, event SessionEvent) {
	if s.publisher == nil {
		return
	}
	event.At = s.now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to encode session event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishSession(ctx, payload); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("type", string(event.Type)),
			zap.String("user_id", event.UserID.String()),
			zap.Error(err),
		)
	}
}
