package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStorePurgeExpiredDryRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	idle := time.Now().Add(-2 * time.Hour)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions`).
		WithArgs(&idle, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := NewPgStore(mock).PurgeExpired(context.Background(), idle, time.Time{}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStorePurgeExpiredDeletes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	idle := time.Now().Add(-2 * time.Hour)
	created := time.Now().Add(-12 * time.Hour)
	mock.ExpectExec("DELETE FROM sessions").
		WithArgs(&idle, &created).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := NewPgStore(mock).PurgeExpired(context.Background(), idle, created, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStorePurgeExpiredIgnoresDisabledLimits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Now().Add(-12 * time.Hour)
	mock.ExpectExec("DELETE FROM sessions").
		WithArgs((*time.Time)(nil), &created).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := NewPgStore(mock).PurgeExpired(context.Background(), time.Time{}, created, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// With both limits disabled nothing can be expired and no query runs.
	n, err = NewPgStore(mock).PurgeExpired(context.Background(), time.Time{}, time.Time{}, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreGetSessionMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM sessions").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "created_at", "last_activity_at", "user_agent", "remote_addr"}))

	_, err = NewPgStore(mock).GetSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreGetUserByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, profile := uuid.New(), uuid.New()
	email := "laura@example.com"
	mock.ExpectQuery(`WHERE u\.username = \$1`).
		WithArgs("asesor1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "first_name", "last_name", "email", "role", "is_active", "profile_id"}).
			AddRow(id, "asesor1", "hash", "Laura", "Diaz", &email, "advisor", true, &profile))

	u, err := NewPgStore(mock).GetUserByUsername(context.Background(), "asesor1")
	require.NoError(t, err)
	assert.Equal(t, RoleAdvisor, u.Role)
	require.NotNil(t, u.ProfileID)
	assert.Equal(t, profile, *u.ProfileID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreDeleteUserSessionsKeepsCurrent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, keep := uuid.New(), uuid.New()
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1 AND id <> \$2`).
		WithArgs(userID, keep).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := NewPgStore(mock).DeleteUserSessions(context.Background(), userID, keep)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreUpdatePasswordHashMissingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs(id, "hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewPgStore(mock).UpdatePasswordHash(context.Background(), id, "hash")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
