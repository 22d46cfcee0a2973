package auth

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CreatedAt  time.Time
	LastSeenAt time.Time
	UserAgent  string
	RemoteAddr string
}

// Policy bounds session lifetime. A zero IdleTimeout or MaxAge disables that limit.
type Policy struct {
	IdleTimeout time.Duration
	MaxAge      time.Duration
}

// DefaultPolicy logs users out after two hours without activity.
var DefaultPolicy = Policy{IdleTimeout: 2 * time.Hour, MaxAge: 12 * time.Hour}

// IsExpired is true once the session has been idle longer than IdleTimeout or
// has lived longer than MaxAge.
func IsExpired(s Session, now time.Time, p Policy) bool {
	if p.IdleTimeout > 0 && now.Sub(s.LastSeenAt) > p.IdleTimeout {
		return true
	}
	if p.MaxAge > 0 && now.Sub(s.CreatedAt) > p.MaxAge {
		return true
	}
	return false
}

// Cutoffs returns the instants before which a session counts as expired, for
// bulk purges. A disabled limit yields the zero time, which matches nothing.
func (p Policy) Cutoffs(now time.Time) (idleBefore, createdBefore time.Time) {
	if p.IdleTimeout > 0 {
		idleBefore = now.Add(-p.IdleTimeout)
	}
	if p.MaxAge > 0 {
		createdBefore = now.Add(-p.MaxAge)
	}
	return idleBefore, createdBefore
}
