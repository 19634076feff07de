package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// pgxPool is the part of *pgxpool.Pool the store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresDB struct {
	pool pgxPool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	// Set connection pool settings
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	db.pool.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// User operations
func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.pool.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`
	return db.scanUser(db.pool.QueryRow(ctx, query, id))
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	return db.scanUser(db.pool.QueryRow(ctx, query, email))
}

func (db *PostgresDB) scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Emergency contact operations
const contactColumns = `id, user_id, name, phone_number, relationship, is_primary, created_at, updated_at`

func scanContact(row pgx.Row) (*models.EmergencyContact, error) {
	var c models.EmergencyContact
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.PhoneNumber,
		&c.Relationship, &c.IsPrimary, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns a user's contacts, primary contacts first, then oldest first.
func (db *PostgresDB) ListContacts(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM emergency_contacts
		WHERE user_id = $1
		ORDER BY is_primary DESC, created_at ASC
	`
	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]models.EmergencyContact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (db *PostgresDB) CreateContact(ctx context.Context, contact *models.EmergencyContact) error {
	query := `
		INSERT INTO emergency_contacts (` + contactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.pool.Exec(ctx, query,
		contact.ID, contact.UserID, contact.Name, contact.PhoneNumber,
		contact.Relationship, contact.IsPrimary, contact.CreatedAt, contact.UpdatedAt,
	)
	return err
}

func (db *PostgresDB) UpdateContact(ctx context.Context, userID, contactID uuid.UUID, upd models.ContactUpdate) (*models.EmergencyContact, error) {
	query := `
		UPDATE emergency_contacts
		SET name = COALESCE($3::text, name),
			phone_number = COALESCE($4::text, phone_number),
			relationship = COALESCE($5::text, relationship),
			is_primary = COALESCE($6::boolean, is_primary),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + contactColumns
	c, err := scanContact(db.pool.QueryRow(ctx, query,
		contactID, userID, upd.Name, upd.PhoneNumber, upd.Relationship, upd.IsPrimary,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (db *PostgresDB) DeleteContact(ctx context.Context, userID, contactID uuid.UUID) error {
	query := `DELETE FROM emergency_contacts WHERE id = $1 AND user_id = $2`
	tag, err := db.pool.Exec(ctx, query, contactID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Safety incident operations
func (db *PostgresDB) LogIncident(ctx context.Context, incident *models.SafetyIncident) error {
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO safety_incidents (id, user_id, incident_type, location_lat, location_lng, location_address, timestamp, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.pool.Exec(ctx, query,
		incident.ID, incident.UserID, string(incident.IncidentType),
		incident.LocationLat, incident.LocationLng, incident.LocationAddress,
		incident.Timestamp, incident.Notes, incident.CreatedAt,
	)
	return err
}

func (db *PostgresDB) ListIncidents(ctx context.Context, userID uuid.UUID, limit int) ([]models.SafetyIncident, error) {
	query := `
		SELECT id, user_id, incident_type, location_lat, location_lng, location_address, timestamp, notes, created_at
		FROM safety_incidents
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := db.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := make([]models.SafetyIncident, 0)
	for rows.Next() {
		var inc models.SafetyIncident
		var kind string
		err := rows.Scan(
			&inc.ID, &inc.UserID, &kind, &inc.LocationLat, &inc.LocationLng,
			&inc.LocationAddress, &inc.Timestamp, &inc.Notes, &inc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		inc.IncidentType = models.IncidentType(kind)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// User profile operations
const profileColumns = `user_id, display_name, emergency_message, push_token, updated_at`

func (db *PostgresDB) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`
	var p models.UserProfile
	err := db.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.DisplayName, &p.EmergencyMessage, &p.PushToken, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *PostgresDB) UpsertProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.UserProfile, error) {
	query := `
		INSERT INTO user_profiles (user_id, display_name, emergency_message, push_token, updated_at)
		VALUES ($1, COALESCE($2::text, ''), COALESCE($3::text, ''), COALESCE($4::text, ''), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = COALESCE($2::text, user_profiles.display_name),
			emergency_message = COALESCE($3::text, user_profiles.emergency_message),
			push_token = COALESCE($4::text, user_profiles.push_token),
			updated_at = NOW()
		RETURNING ` + profileColumns
	var p models.UserProfile
	err := db.pool.QueryRow(ctx, query,
		userID, upd.DisplayName, upd.EmergencyMessage, upd.PushToken,
	).Scan(&p.UserID, &p.DisplayName, &p.EmergencyMessage, &p.PushToken, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
