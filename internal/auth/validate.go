package auth

import (
	"regexp"

	"github.com/vovakirdan/linechat/internal/core"
)

const (
	// MaxUsernameLength bounds usernames.
	MaxUsernameLength = 12
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
	// DefaultColor is used when a registration omits a colour.
	DefaultColor = 15
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidateUsername checks length before character set.
func ValidateUsername(name string) error {
	if name == "" || len(name) > MaxUsernameLength {
		return core.ErrInvalidUsername
	}
	if !usernamePattern.MatchString(name) {
		return core.ErrInvalidUsername
	}
	return nil
}

// ValidatePassword rejects empty passwords and those bcrypt would refuse.
func ValidatePassword(password string) error {
	if password == "" || len(password) > MaxPasswordBytes {
		return core.ErrInvalidPassword
	}
	return nil
}

// ValidateColor accepts ANSI 256-colour indexes.
func ValidateColor(color int) error {
	if color < 0 || color > 255 {
		return core.ErrInvalidColor
	}
	return nil
}
