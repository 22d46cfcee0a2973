package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// ErrWeakPassword is wrapped by every password policy failure.
var ErrWeakPassword = errors.New("password does not meet the password policy")

var (
	ErrIncorrectPassword = errors.New("current password is incorrect")
	ErrPasswordMismatch  = errors.New("new password and confirmation do not match")
)

// commonPasswords are rejected outright, compared case-insensitively.
var commonPasswords = map[string]bool{
	"password": true, "password1": true, "password123": true, "passw0rd": true,
	"12345678": true, "123456789": true, "1234567890": true, "87654321": true,
	"qwerty123": true, "qwertyuiop": true, "1q2w3e4r": true, "1qaz2wsx": true,
	"abc12345": true, "abcd1234": true, "iloveyou": true, "sunshine": true,
	"princess": true, "football": true, "baseball": true, "welcome1": true,
	"letmein1": true, "trustno1": true, "superman": true, "starwars": true,
	"whatever": true, "dragon123": true, "monkey123": true, "admin123": true,
	"administrator": true, "changeme": true, "contraseña": true, "contrasena": true,
	"clinica123": true, "medico123": true, "paciente": true, "colombia": true,
}

// ValidatePassword applies the password policy: a minimum length, not only
// digits and not a well-known password.
func ValidatePassword(password string) error {
	switch {
	case len([]rune(password)) < minPasswordLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPasswordLength)
	case isNumeric(password):
		return fmt.Errorf("%w: cannot be entirely numeric", ErrWeakPassword)
	case commonPasswords[strings.ToLower(password)]:
		return fmt.Errorf("%w: too common", ErrWeakPassword)
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// HashPassword validates password against the policy and bcrypt-hashes it.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. Malformed hashes never match.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
