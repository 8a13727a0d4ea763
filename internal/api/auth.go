package api

import (
	"net/http"

	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/internal/service"
	"kmle-tutor/backend/internal/session"
	"kmle-tutor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles registration, login and logout
type AuthHandler struct {
	service  *service.UserService
	sessions *session.Manager
	logger   *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.UserService, sessions *session.Manager, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		logger:   logger,
	}
}

// Signup handles account registration. Registration does not log the user
// in; the client follows up with a login call.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for signup", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, _, err := h.service.Register(&req)
	if err != nil {
		switch err {
		case service.ErrUserAlreadyExists:
			c.JSON(http.StatusConflict, gin.H{"error": "A user with this username already exists"})
		default:
			h.logger.Error("Error creating user", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user account"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user": user.ToResponse(),
	})
}

// Login authenticates the user and initializes a fresh session on the
// default subject, with that subject's transcript loaded.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for login", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, token, err := h.service.Login(&req)
	if err != nil {
		switch err {
		case service.ErrInvalidCredentials:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		default:
			h.logger.Error("Error during login", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during login"})
		}
		return
	}

	sess, err := h.sessions.Login(user.Username)
	if err != nil {
		h.logger.Error("Error loading session transcript", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation history"})
		return
	}

	h.logger.Info("User logged in successfully",
		"userID", user.ID,
		"username", user.Username,
	)

	c.JSON(http.StatusOK, gin.H{
		"user":    user.ToResponse(),
		"token":   token,
		"session": sess,
	})
}

// Logout discards the in-memory session. Durable history is untouched.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.Logout(usernameFrom(c))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.service.GetUserByUsername(usernameFrom(c))
	if err != nil {
		switch err {
		case service.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			h.logger.Error("Error getting user", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		}
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
