package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultTokenTTL applies when no access token lifetime is configured.
const defaultTokenTTL = 60 * time.Minute

// CustomClaims extends JWT standard claims with the account's device binding.
type CustomClaims struct {
	jwt.RegisteredClaims
	Username string `json:"uname"`
	DeviceID string `json:"device_id"`
}

// GenerateAccessToken creates a signed HS256 access token for a user.
// Tokens are validated by signature only, with no database lookup.
func GenerateAccessToken(user *User, secret []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
		DeviceID: user.DeviceID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a JWT access token and returns its claims.
// It checks the signature, expiry, and that the device binding is present.
func ParseToken(tokenString string, secret []byte) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing device_id", ErrTokenInvalid)
	}
	return claims, nil
}
