package service

import (
	"testing"
	"time"

	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(newTestDB(t), jwt.NewService("test-secret", time.Hour))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService(t)

	user, _, err := svc.Register(&models.RegisterRequest{Username: "drkim", Password: "pastel"})
	require.NoError(t, err)
	assert.Equal(t, "drkim", user.Username)
	// Stored password is a hash, never the plaintext.
	assert.NotEqual(t, "pastel", user.Password)

	loggedIn, token, err := svc.Login(&models.LoginRequest{Username: "drkim", Password: "pastel"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newUserService(t)

	_, _, err := svc.Register(&models.RegisterRequest{Username: "drkim", Password: "pastel"})
	require.NoError(t, err)

	_, _, err = svc.Register(&models.RegisterRequest{Username: "drkim", Password: "other"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newUserService(t)

	_, _, err := svc.Register(&models.RegisterRequest{Username: "drkim", Password: "pastel"})
	require.NoError(t, err)

	_, _, err = svc.Login(&models.LoginRequest{Username: "drkim", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newUserService(t)

	_, _, err := svc.Login(&models.LoginRequest{Username: "ghost", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
