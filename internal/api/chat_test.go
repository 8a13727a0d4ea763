package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kmle-tutor/backend/ai"
	"kmle-tutor/backend/internal/export"
	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/internal/service"
	"kmle-tutor/backend/internal/session"
	apperrors "kmle-tutor/backend/pkg/errors"
	"kmle-tutor/backend/pkg/jwt"
	"kmle-tutor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeGenerator stands in for the tutor response pipeline. It answers with
// the structured sections and an already-converted image link, the shape the
// real pipeline produces after tag conversion.
type fakeGenerator struct {
	err     error
	lastReq ai.Request
}

const cannedAnswer = "인상(Impression): 대동맥 박리가 의심돼요.\n" +
	"핵심 단서(Key clue): 등으로 방사되는 찢어지는 흉통이에요.\n" +
	"진단 계획(Diagnostic plan): CT 혈관조영술을 먼저 시행해요.\n" +
	"치료(Treatment): 혈압 조절 후 외과 협진이 필요해요.\n" +
	"[🖼️ aortic dissection 도해 보기](https://www.google.com/search?tbm=isch&q=aortic+dissection)"

func (f *fakeGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return cannedAnswer, nil
}

type testApp struct {
	engine    *gin.Engine
	generator *fakeGenerator
	sessions  *session.Manager
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ChatRecord{}))

	log := logger.New(logger.DefaultConfig())
	jwtService := jwt.NewService("test-secret", time.Hour)
	userService := service.NewUserService(db, jwtService)
	transcriptService := service.NewTranscriptService(db)
	sessions := session.NewManager(transcriptService, log)
	generator := &fakeGenerator{}
	formatter := export.NewFormatter("KMLE AI Tutor", "KMLE",
		filepath.Join(t.TempDir(), "missing.ttf"), "NanumGothic")

	authHandler := NewAuthHandler(userService, sessions, log)
	chatHandler := NewChatHandler(sessions, generator, log)
	exportHandler := NewExportHandler(sessions, formatter, log)

	engine := gin.New()
	engine.Use(apperrors.ErrorHandler(log))
	apiGroup := engine.Group("/api")
	apiGroup.POST("/auth/signup", authHandler.Signup)
	apiGroup.POST("/auth/login", authHandler.Login)

	authed := apiGroup.Group("")
	authed.Use(AuthMiddleware(jwtService))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/subjects", chatHandler.ListSubjects)
	authed.GET("/chat", chatHandler.GetChat)
	authed.POST("/chat/send", chatHandler.Send)
	authed.DELETE("/chat/message/:index", chatHandler.Delete)
	authed.POST("/chat/message/:index/include", chatHandler.SetIncluded)
	authed.GET("/export", exportHandler.Download)
	authed.GET("/export/status", exportHandler.Status)

	return &testApp{engine: engine, generator: generator, sessions: sessions}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) registerAndLogin(t *testing.T, username, password string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token   string          `json:"token"`
		Session session.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) session.Session {
	t.Helper()
	var sess session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	return sess
}

func TestSignupDuplicateUsername(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"username": "drkim", "password": "pastel"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"username": "drkim", "password": "pastel"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginBadCredentials(t *testing.T) {
	app := setupApp(t)
	app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "drkim", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatRequiresAuth(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodGet, "/api/chat", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTutorScenarioRoundTrip(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	// Select Cardiology and submit a prompt with no image.
	w := app.do(t, http.MethodPost, "/api/chat/send", token, gin.H{
		"subject": "cardiology",
		"prompt":  "55M chest pain radiating to back",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/chat?subject=cardiology", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decodeSession(t, w)
	require.Len(t, sess.Entries, 2)
	assert.Equal(t, models.RoleUser, sess.Entries[0].Role)
	assert.Equal(t, "55M chest pain radiating to back", sess.Entries[0].Content)
	assert.Equal(t, models.RoleAssistant, sess.Entries[1].Role)
	assert.Contains(t, sess.Entries[1].Content, "진단 계획")
	assert.Contains(t, sess.Entries[1].Content, "q=aortic+dissection")
	assert.NotContains(t, sess.Entries[1].Content, "[image-search:")

	// Logging out and back in reselecting Cardiology reproduces the exact
	// two-message sequence.
	w = app.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	token = func() string {
		w := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "drkim", "password": "pastel"})
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Token
	}()

	w = app.do(t, http.MethodGet, "/api/chat?subject=cardiology", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reloaded := decodeSession(t, w)
	require.Len(t, reloaded.Entries, 2)
	assert.Equal(t, sess.Entries[0].Content, reloaded.Entries[0].Content)
	assert.Equal(t, sess.Entries[1].Content, reloaded.Entries[1].Content)
	assert.Equal(t, sess.Entries[0].RecordID, reloaded.Entries[0].RecordID)
}

func TestSubjectIsolationOverHTTP(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodPost, "/api/chat/send", token, gin.H{
		"subject": "cardiology",
		"prompt":  "heart question",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/chat?subject=pulmonology", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decodeSession(t, w)
	assert.Equal(t, "pulmonology", sess.Subject)
	assert.Empty(t, sess.Entries)
}

func TestGenerationFailureSavesNoAssistantTurn(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")
	app.generator.err = errors.New("model call failed: quota exceeded")

	w := app.do(t, http.MethodPost, "/api/chat/send", token, gin.H{
		"subject": "cardiology",
		"prompt":  "doomed question",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "quota exceeded")

	// The user turn was already durable; no assistant turn follows it.
	w = app.do(t, http.MethodGet, "/api/chat?subject=cardiology", token, nil)
	sess := decodeSession(t, w)
	require.Len(t, sess.Entries, 1)
	assert.Equal(t, models.RoleUser, sess.Entries[0].Role)
}

func TestDeleteOnlyMessageEmptiesTranscript(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodPost, "/api/chat/send", token, gin.H{
		"subject": "cardiology",
		"prompt":  "only question",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Delete the assistant turn, then the user turn.
	w = app.do(t, http.MethodDelete, "/api/chat/message/1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodDelete, "/api/chat/message/0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeSession(t, w).Entries)

	// A full reload still sees an empty transcript.
	w = app.do(t, http.MethodGet, "/api/chat?subject=cardiology", token, nil)
	assert.Empty(t, decodeSession(t, w).Entries)
}

func TestDeleteOutOfRangeIndex(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodDelete, "/api/chat/message/7", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIncludeToggle(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodPost, "/api/chat/send", token, gin.H{
		"subject": "cardiology",
		"prompt":  "q",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/chat/message/0/include", token, gin.H{"included": false})
	require.Equal(t, http.StatusOK, w.Code)
	sess := decodeSession(t, w)
	assert.False(t, sess.Entries[0].Included)
	assert.True(t, sess.Entries[1].Included)
}

func TestImageForwardedToPipelineNotPersisted(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodPost, "/api/chat/send", token, gin.H{
		"subject":    "cardiology",
		"prompt":     "what is this rash?",
		"image_data": "AAAA",
		"image_mime": "image/png",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data:image/png;base64,AAAA", app.generator.lastReq.ImageURL)

	// After a reload the image is gone; the text survives.
	w = app.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token = app.loginAgain(t, "drkim", "pastel")

	w = app.do(t, http.MethodGet, "/api/chat?subject=cardiology", token, nil)
	sess := decodeSession(t, w)
	require.Len(t, sess.Entries, 2)
	assert.Empty(t, sess.Entries[0].Image)
	assert.Equal(t, "what is this rash?", sess.Entries[0].Content)
}

func TestExportUnavailableWithoutFont(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodGet, "/api/export/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":false`)

	w = app.do(t, http.MethodGet, "/api/export", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMalformedSendBodyIsSingleClientError(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	req := httptest.NewRequest(http.MethodPost, "/api/chat/send", strings.NewReader(`{"subject":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Exactly one error object in the body, nothing concatenated after it.
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	dec := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, dec.Decode(&resp))
	assert.ErrorIs(t, dec.Decode(&struct{}{}), io.EOF)
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	assert.Equal(t, "Invalid request format", resp.Error.Message)
}

func TestUnknownSubjectRejected(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "drkim", "pastel")

	w := app.do(t, http.MethodPost, "/api/chat/send", token, gin.H{
		"subject": "astrology",
		"prompt":  "q",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (a *testApp) loginAgain(t *testing.T, username, password string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}
