package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
)

type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Email        *string
	Role         Role
	Active       bool
	ProfileID    *uuid.UUID
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	// DeleteUserSessions removes every session of the user except keep.
	DeleteUserSessions(ctx context.Context, userID, keep uuid.UUID) (int64, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	// PurgeExpired deletes, or with dryRun only counts, sessions idle since
	// before idleBefore or created before createdBefore. A zero cutoff is ignored.
	PurgeExpired(ctx context.Context, idleBefore, createdBefore time.Time, dryRun bool) (int64, error)
}

type PgStore struct {
	db db.DBTX
}

func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

const userSelect = `
	SELECT u.id, u.username, u.password_hash, u.first_name, u.last_name, u.email, u.role, u.is_active,
	       COALESCE(pa.id, pr.id, ad.id) AS profile_id
	FROM users u
	LEFT JOIN patients pa ON pa.user_id = u.id
	LEFT JOIN professionals pr ON pr.user_id = u.id
	LEFT JOIN advisors ad ON ad.user_id = u.id`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email, &role, &u.Active, &u.ProfileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func (s *PgStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, userSelect+` WHERE u.username = $1`, username))
}

func (s *PgStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
}

func (s *PgStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, last_activity_at, user_agent, remote_addr)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.UserID, sess.CreatedAt, sess.LastSeenAt, sess.UserAgent, sess.RemoteAddr)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PgStore) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var (
		sess      Session
		userAgent *string
		addr      *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, created_at, last_activity_at, user_agent, remote_addr
		FROM sessions
		WHERE id = $1
	`, id).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.LastSeenAt, &userAgent, &addr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if userAgent != nil {
		sess.UserAgent = *userAgent
	}
	if addr != nil {
		sess.RemoteAddr = *addr
	}
	return &sess, nil
}

func (s *PgStore) TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET last_activity_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteUserSessions(ctx context.Context, userID, keep uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND id <> $2`, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PgStore) PurgeExpired(ctx context.Context, idleBefore, createdBefore time.Time, dryRun bool) (int64, error) {
	idle, created := nullableTime(idleBefore), nullableTime(createdBefore)
	if idle == nil && created == nil {
		return 0, nil
	}

	const where = `WHERE ($1::timestamptz IS NOT NULL AND last_activity_at < $1)
		OR ($2::timestamptz IS NOT NULL AND created_at < $2)`

	if dryRun {
		var n int64
		if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM sessions `+where, idle, created).Scan(&n); err != nil {
			return 0, fmt.Errorf("count expired sessions: %w", err)
		}
		return n, nil
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM sessions `+where, idle, created)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
