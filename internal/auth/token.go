package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "clinic-appointment-scheduling"

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims binds a bearer token to a server-side session via the JWT ID.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 bearer tokens. A zero ttl issues tokens
// without an expiry claim and leaves lifetime to the session policy.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// ExpiresAt is when a token issued at issuedAt stops verifying, or the zero
// time when tokens do not expire.
func (t *Tokens) ExpiresAt(issuedAt time.Time) time.Time {
	if t.ttl <= 0 {
		return time.Time{}
	}
	return issuedAt.Add(t.ttl)
}

func (t *Tokens) Issue(s Session, role Role) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       s.ID.String(),
			Subject:  s.UserID.String(),
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(s.CreatedAt),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(s.CreatedAt.Add(t.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry and returns the session and user IDs.
func (t *Tokens) Parse(token string) (sessionID, userID uuid.UUID, err error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !parsed.Valid {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}

	sessionID, err = uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	userID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	return sessionID, userID, nil
}
