package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// minPasswordLength is the shortest password accepted at sign-up.
const minPasswordLength = 8

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// User is an operator account bound to exactly one device.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DeviceID     string    `json:"device_id"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
}

// DeviceKey is a pairing code printed on a device. Presenting it at sign-up
// binds the new account to the device.
type DeviceKey struct {
	DeviceID  string    `json:"device_id"`
	Code      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidDeviceCode  = errors.New("invalid device code")
	ErrDeviceKeyNotFound  = errors.New("device key not found")
	ErrDeviceKeyConflict  = errors.New("device code already assigned to another device")
	ErrTokenInvalid       = errors.New("invalid token")
)
