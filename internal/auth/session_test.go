package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	created := time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC)
	policy := Policy{IdleTimeout: 2 * time.Hour, MaxAge: 12 * time.Hour}

	cases := []struct {
		name     string
		lastSeen time.Time
		now      time.Time
		want     bool
	}{
		{"fresh", created, created.Add(time.Minute), false},
		{"idle exactly two hours", created, created.Add(2 * time.Hour), false},
		{"idle just over two hours", created, created.Add(2*time.Hour + time.Second), true},
		{"active but too old", created.Add(11 * time.Hour), created.Add(12*time.Hour + time.Minute), true},
		{"recent activity keeps it alive", created.Add(5 * time.Hour), created.Add(6 * time.Hour), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Session{CreatedAt: created, LastSeenAt: tc.lastSeen}
			assert.Equal(t, tc.want, IsExpired(s, tc.now, policy))
		})
	}
}

func TestIsExpired_NoMaxAge(t *testing.T) {
	created := time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC)
	s := Session{CreatedAt: created, LastSeenAt: created.Add(100 * time.Hour)}
	assert.False(t, IsExpired(s, created.Add(101*time.Hour), Policy{IdleTimeout: 2 * time.Hour}))
}

func TestPolicyCutoffs(t *testing.T) {
	now := time.Date(2030, time.March, 4, 12, 0, 0, 0, time.UTC)

	idle, created := DefaultPolicy.Cutoffs(now)
	assert.Equal(t, now.Add(-2*time.Hour), idle)
	assert.Equal(t, now.Add(-12*time.Hour), created)

	_, created = Policy{IdleTimeout: time.Hour}.Cutoffs(now)
	assert.True(t, created.IsZero())

	idle, created = Policy{MaxAge: time.Hour}.Cutoffs(now)
	assert.True(t, idle.IsZero())
	assert.Equal(t, now.Add(-time.Hour), created)
}

func TestDisabledLimitsAgree(t *testing.T) {
	now := time.Date(2030, time.March, 4, 12, 0, 0, 0, time.UTC)
	s := Session{CreatedAt: now.Add(-30 * 24 * time.Hour), LastSeenAt: now.Add(-10 * 24 * time.Hour)}
	p := Policy{}

	assert.False(t, IsExpired(s, now, p))
	idle, created := p.Cutoffs(now)
	assert.True(t, idle.IsZero())
	assert.True(t, created.IsZero())
}

func TestPrincipalIs(t *testing.T) {
	assert.True(t, Principal{Role: RoleAdvisor}.Is(RoleAdvisor, RolePatient))
	assert.False(t, Principal{Role: RolePatient}.Is(RoleAdvisor))
	assert.True(t, Principal{Role: RoleAdmin}.Is(RoleProfessional))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("professional")
	assert.True(t, ok)
	assert.Equal(t, RoleProfessional, r)

	_, ok = ParseRole("nurse")
	assert.False(t, ok)
}
