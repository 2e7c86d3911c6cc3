package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Token is the result of a successful sign-up or login.
type Token struct {
	AccessToken string
	DeviceID    string
}

// Service implements account sign-up and login.
type Service struct {
	users  UserRepository
	keys   DeviceKeyRepository
	secret []byte
	ttl    time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates an auth service signing tokens with secret.
func NewService(users UserRepository, keys DeviceKeyRepository, secret string, ttl time.Duration) *Service {
	return &Service{
		users:  users,
		keys:   keys,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// SignUp creates an account bound to the device owning deviceCode and returns
// an access token for it.
func (s *Service) SignUp(ctx context.Context, username, password, deviceCode string) (*Token, error) {
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	if deviceCode == "" {
		return nil, ErrInvalidDeviceCode
	}

	key, err := s.keys.GetByCode(ctx, deviceCode)
	if err != nil {
		if errors.Is(err, ErrDeviceKeyNotFound) {
			return nil, ErrInvalidDeviceCode
		}
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{Username: username, DeviceID: key.DeviceID, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login verifies credentials and returns an access token.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same hashing time as a real check.
			_, _ = VerifyPassword(password, s.dummy()) //nolint:errcheck // timing only
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// ParseToken validates an access token issued by this service.
func (s *Service) ParseToken(token string) (*CustomClaims, error) {
	return ParseToken(token, s.secret)
}

func (s *Service) issue(user *User) (*Token, error) {
	signed, err := GenerateAccessToken(user, s.secret, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, DeviceID: user.DeviceID}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = HashPassword("phaselink-dummy-password") //nolint:errcheck // rand failure leaves an unparseable hash
	})
	return s.dummyHash
}
