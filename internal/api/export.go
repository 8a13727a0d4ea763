package api

import (
	"errors"
	"net/http"

	"kmle-tutor/backend/internal/export"
	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/internal/session"
	apperrors "kmle-tutor/backend/pkg/errors"
	"kmle-tutor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ExportHandler renders the included messages of the active session into a
// downloadable PDF.
type ExportHandler struct {
	sessions  *session.Manager
	formatter *export.Formatter
	logger    *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(sessions *session.Manager, formatter *export.Formatter, logger *logger.Logger) *ExportHandler {
	return &ExportHandler{
		sessions:  sessions,
		formatter: formatter,
		logger:    logger,
	}
}

// Status reports whether export is possible, so the UI can disable the
// affordance instead of failing a download.
func (h *ExportHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"available": h.formatter.Available()})
}

// Download renders and returns the PDF for the current session.
func (h *ExportHandler) Download(c *gin.Context) {
	username := usernameFrom(c)

	sess, err := h.sessions.Snapshot(username)
	if err != nil {
		c.Error(apperrors.NewUnauthorizedError("NO_SESSION", "No active session; please log in"))
		return
	}

	subject, ok := models.SubjectByID(sess.Subject)
	if !ok {
		c.Error(apperrors.NewBadRequestError("NO_SUBJECT", "No subject selected"))
		return
	}

	document, err := h.formatter.Render(username, subject, sess.Entries)
	if err != nil {
		if errors.Is(err, export.ErrUnavailable) {
			c.Error(apperrors.NewServiceUnavailableError("EXPORT_UNAVAILABLE", "Export is unavailable: font resource missing"))
			return
		}
		h.logger.WithUsername(username).LogError(err, "export failed", "subject", subject.ID)
		c.Error(apperrors.NewInternalServerError("EXPORT_FAILED", "Failed to render export"))
		return
	}

	fileName := h.formatter.FileName(subject, username)
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", document)
}
