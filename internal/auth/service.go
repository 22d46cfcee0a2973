package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionExpired     = errors.New("session expired due to inactivity, please log in again")
	// ErrSessionInvalid covers sessions whose user was deactivated or lost its profile.
	ErrSessionInvalid = errors.New("session is no longer valid")
)

type Service struct {
	store   Store
	tokens  *Tokens
	policy  Policy
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, tokens *Tokens, policy Policy, opts ...Option) *Service {
	s := &Service{store: store, tokens: tokens, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	return s
}

type LoginRequest struct {
	Username   string
	Password   string
	UserAgent  string
	RemoteAddr string
}

type LoginResult struct {
	Token     string
	Principal Principal
	ExpiresAt time.Time
}

// Login verifies credentials, opens a server-side session and returns a bearer
// token bound to it.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if err := checkIntegrity(user); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	sess := Session{
		ID:         uuid.New(),
		UserID:     user.ID,
		CreatedAt:  now,
		LastSeenAt: now,
		UserAgent:  req.UserAgent,
		RemoteAddr: req.RemoteAddr,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(sess, user.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role, "session_id", sess.ID)
	return &LoginResult{
		Token:     token,
		Principal: principalOf(user, sess.ID),
		ExpiresAt: s.tokens.ExpiresAt(now),
	}, nil
}

// Authenticate resolves a bearer token to a Principal and records activity.
// Expired sessions are deleted on sight.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	sessionID, userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrInvalidToken
	}

	now := s.now()
	if IsExpired(*sess, now, s.policy) {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			s.logger.Warn("failed to delete expired session", "session_id", sess.ID, "error", err)
		}
		return nil, ErrSessionExpired
	}

	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := checkIntegrity(user); err != nil {
		if delErr := s.store.DeleteSession(ctx, sess.ID); delErr != nil {
			s.logger.Warn("failed to delete invalid session", "session_id", sess.ID, "error", delErr)
		}
		return nil, err
	}

	if err := s.store.TouchSession(ctx, sess.ID, now); err != nil {
		s.logger.Warn("failed to record session activity", "session_id", sess.ID, "error", err)
	}

	p := principalOf(user, sess.ID)
	return &p, nil
}

func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("user logged out", "session_id", sessionID)
	return nil
}

type ChangePasswordRequest struct {
	UserID       uuid.UUID
	SessionID    uuid.UUID
	OldPassword  string
	NewPassword  string
	Confirmation string
}

// ChangePassword replaces the user's password after checking the current one.
// Every other session of the user is closed; the calling session stays valid.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, req.OldPassword) {
		return ErrIncorrectPassword
	}
	if req.NewPassword != req.Confirmation {
		return ErrPasswordMismatch
	}
	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	closed, err := s.store.DeleteUserSessions(ctx, user.ID, req.SessionID)
	if err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", user.ID, "sessions_closed", closed)
	return nil
}

// PurgeExpired removes every session the policy considers expired. With dryRun
// it only reports how many would go.
func (s *Service) PurgeExpired(ctx context.Context, dryRun bool) (int64, error) {
	idleBefore, createdBefore := s.policy.Cutoffs(s.now())
	n, err := s.store.PurgeExpired(ctx, idleBefore, createdBefore, dryRun)
	if err != nil {
		return 0, err
	}
	if !dryRun {
		s.metrics.ObserveSessionsPurged(n)
	}
	return n, nil
}

func checkIntegrity(u *User) error {
	if !u.Active {
		return ErrSessionInvalid
	}
	if _, ok := ParseRole(string(u.Role)); !ok {
		return ErrSessionInvalid
	}
	if u.Role.NeedsProfile() && u.ProfileID == nil {
		return ErrSessionInvalid
	}
	return nil
}

func principalOf(u *User, sessionID uuid.UUID) Principal {
	return Principal{
		UserID:    u.ID,
		SessionID: sessionID,
		Username:  u.Username,
		FullName:  u.FullName(),
		Role:      u.Role,
		ProfileID: u.ProfileID,
	}
}
