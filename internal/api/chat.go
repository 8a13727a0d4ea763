package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"kmle-tutor/backend/ai"
	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/internal/service"
	"kmle-tutor/backend/internal/session"
	apperrors "kmle-tutor/backend/pkg/errors"
	"kmle-tutor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ChatHandler drives the session state machine from UI events: subject
// selection, prompt submission, deletion and export-inclusion toggling.
type ChatHandler struct {
	sessions  *session.Manager
	generator ai.Generator
	logger    *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(sessions *session.Manager, generator ai.Generator, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{
		sessions:  sessions,
		generator: generator,
		logger:    logger,
	}
}

// ListSubjects returns the fixed subject catalog.
func (h *ChatHandler) ListSubjects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subjects": models.Subjects})
}

// GetChat returns the session mirror, switching subject first when the
// subject query parameter names a different one.
func (h *ChatHandler) GetChat(c *gin.Context) {
	username := usernameFrom(c)

	var (
		sess session.Session
		err  error
	)
	if subjectID := c.Query("subject"); subjectID != "" {
		if _, ok := models.SubjectByID(subjectID); !ok {
			c.Error(apperrors.NewBadRequestError("UNKNOWN_SUBJECT", "Unknown subject"))
			return
		}
		sess, err = h.sessions.SelectSubject(username, subjectID)
	} else {
		sess, err = h.sessions.Snapshot(username)
	}

	if err != nil {
		h.respondSessionError(c, err, "Error loading conversation")
		return
	}

	c.JSON(http.StatusOK, sess)
}

// sendRequest is one prompt submission. The image is optional and never
// persisted; it rides along for this call and this session only.
type sendRequest struct {
	Subject   string `json:"subject" binding:"required"`
	Prompt    string `json:"prompt" binding:"required"`
	ImageData string `json:"image_data,omitempty"`
	ImageMIME string `json:"image_mime,omitempty"`
}

// Send submits a prompt to the tutor pipeline and appends both the user
// message and the generated answer to mirror and store. Submissions for one
// session are serialized, and the submitted subject is pinned for the whole
// exchange, so both turns land in the same transcript partition.
func (h *ChatHandler) Send(c *gin.Context) {
	username := usernameFrom(c)

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	subject, ok := models.SubjectByID(req.Subject)
	if !ok {
		c.Error(apperrors.NewBadRequestError("UNKNOWN_SUBJECT", "Unknown subject"))
		return
	}

	if err := h.sessions.BeginGeneration(username, subject.ID); err != nil {
		h.respondSessionError(c, err, "Error starting generation")
		return
	}
	defer h.sessions.EndGeneration(username)

	imageURL := ""
	if req.ImageData != "" {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		imageURL = fmt.Sprintf("data:%s;base64,%s", mime, req.ImageData)
	}

	userEntry, err := h.sessions.Append(username, subject.ID, models.RoleUser, req.Prompt, imageURL)
	if err != nil {
		h.respondSessionError(c, err, "Error saving message")
		return
	}

	answer, err := h.generator.Generate(c.Request.Context(), ai.Request{
		Subject:  subject,
		Prompt:   req.Prompt,
		ImageURL: imageURL,
	})
	if err != nil {
		// Surfaced verbatim; the assistant turn is not persisted.
		h.logger.WithUsername(username).LogError(err, "generation failed", "subject", subject.ID)
		c.Error(apperrors.NewBadGatewayError("GENERATION_FAILED", err.Error()))
		return
	}

	assistantEntry, err := h.sessions.Append(username, subject.ID, models.RoleAssistant, answer, "")
	if err != nil {
		h.respondSessionError(c, err, "Error saving tutor response")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userMessage":  userEntry,
		"tutorMessage": assistantEntry,
	})
}

// Delete removes the message at the given mirror index from both the mirror
// and the durable store.
func (h *ChatHandler) Delete(c *gin.Context) {
	username := usernameFrom(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_INDEX", "Message index must be a number"))
		return
	}

	sess, err := h.sessions.Delete(username, index)
	if err != nil {
		h.respondSessionError(c, err, "Error deleting message")
		return
	}

	c.JSON(http.StatusOK, sess)
}

// SetIncluded toggles the export inclusion flag for one message.
func (h *ChatHandler) SetIncluded(c *gin.Context) {
	username := usernameFrom(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_INDEX", "Message index must be a number"))
		return
	}

	var req struct {
		Included *bool `json:"included" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	sess, err := h.sessions.SetIncluded(username, index, *req.Included)
	if err != nil {
		h.respondSessionError(c, err, "Error updating message")
		return
	}

	c.JSON(http.StatusOK, sess)
}

// respondSessionError maps session and storage failures onto the error
// taxonomy; the error middleware renders the response.
func (h *ChatHandler) respondSessionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		c.Error(apperrors.NewUnauthorizedError("NO_SESSION", "No active session; please log in"))
	case errors.Is(err, session.ErrIndexOutOfRange):
		c.Error(apperrors.NewBadRequestError("INDEX_OUT_OF_RANGE", "Message index out of range"))
	case errors.Is(err, session.ErrGenerationInFlight):
		c.Error(apperrors.NewConflictError("GENERATION_IN_FLIGHT", "A response is already being generated"))
	case errors.Is(err, service.ErrRecordNotFound):
		c.Error(apperrors.NewNotFoundError("RECORD_NOT_FOUND", "Message no longer exists"))
	default:
		h.logger.WithUsername(usernameFrom(c)).LogError(err, fallback, "path", c.Request.URL.Path)
		c.Error(apperrors.NewInternalServerError("INTERNAL_ERROR", fallback))
	}
}
