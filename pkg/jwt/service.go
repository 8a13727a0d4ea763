package jwt

import (
	"time"
)

// Service is a wrapper for session token operations
type Service struct {
	secretKey string
	expiry    time.Duration
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if expiry == 0 {
		expiry = 24 * time.Hour
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

// GenerateToken generates a session token for a user
func (s *Service) GenerateToken(userID uint, username string) (string, error) {
	return generateToken(s.secretKey, s.expiry, userID, username)
}

// ValidateToken validates a session token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return validateToken(s.secretKey, tokenString)
}
