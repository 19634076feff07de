package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

var contactRowColumns = []string{
	"id", "user_id", "name", "phone_number", "relationship", "is_primary", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*PostgresDB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return &PostgresDB{pool: mock}, mock
}

func TestListContactsOrdersPrimaryFirstThenOldest(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	// Rows come back in the order the query asks Postgres for.
	rows := pgxmock.NewRows(contactRowColumns).
		AddRow(uuid.New(), userID, "Newer primary", "+15551230002", "Sister", true, base.Add(2*time.Hour), base.Add(2*time.Hour)).
		AddRow(uuid.New(), userID, "Older primary", "+15551230003", "Parent", true, base.Add(3*time.Hour), base.Add(3*time.Hour)).
		AddRow(uuid.New(), userID, "Oldest friend", "+15551230000", "Friend", false, base, base).
		AddRow(uuid.New(), userID, "Neighbour", "+15551230001", "Neighbour", false, base.Add(time.Hour), base.Add(time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY is_primary DESC, created_at ASC")).
		WithArgs(userID).
		WillReturnRows(rows)

	contacts, err := db.ListContacts(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, contacts, 4)

	names := make([]string, 0, len(contacts))
	for _, c := range contacts {
		names = append(names, c.Name)
		assert.Equal(t, userID, c.UserID)
	}
	assert.Equal(t, []string{"Newer primary", "Older primary", "Oldest friend", "Neighbour"}, names)
	assert.True(t, contacts[0].IsPrimary)
	assert.True(t, contacts[1].IsPrimary)
	assert.False(t, contacts[2].IsPrimary)
	assert.Equal(t, "+15551230000", contacts[2].PhoneNumber)
	assert.Equal(t, []string{"+15551230002", "+15551230003", "+15551230000", "+15551230001"}, models.PhoneNumbers(contacts))
}

func TestListContactsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM emergency_contacts")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(contactRowColumns))

	contacts, err := db.ListContacts(context.Background(), userID)
	require.NoError(t, err)
	assert.NotNil(t, contacts)
	assert.Empty(t, contacts)
}

func TestUpdateContactNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	userID, contactID := uuid.New(), uuid.New()
	name := "Mum"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE emergency_contacts")).
		WithArgs(contactID, userID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(contactRowColumns))

	_, err := db.UpdateContact(context.Background(), userID, contactID, models.ContactUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteContact(t *testing.T) {
	db, mock := newMockDB(t)
	userID, contactID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM emergency_contacts")).
		WithArgs(contactID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM emergency_contacts")).
		WithArgs(contactID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, db.DeleteContact(context.Background(), userID, contactID))
	assert.ErrorIs(t, db.DeleteContact(context.Background(), userID, contactID), ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	assert.ErrorIs(t, db.CreateUser(context.Background(), user), ErrDuplicate)
}

func TestGetProfileMissing(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "display_name", "emergency_message", "push_token", "updated_at"}))

	profile, err := db.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, profile)
}
