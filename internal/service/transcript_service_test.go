package service

import (
	"path/filepath"
	"testing"
	"time"

	"kmle-tutor/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ChatRecord{}))
	return db
}

func appendRecord(t *testing.T, svc *TranscriptService, username, subject, role, content string, at time.Time) models.ChatRecord {
	t.Helper()

	rec := models.ChatRecord{
		Username:  username,
		Subject:   subject,
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
	require.NoError(t, svc.Append(&rec))
	require.NotZero(t, rec.ID)
	return rec
}

func TestLoadOrderedRoundTrip(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))
	base := time.Now()

	appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "55M chest pain", base)
	appendRecord(t, svc, "drkim", "cardiology", models.RoleAssistant, "impression: ACS", base.Add(time.Second))
	appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "next step?", base.Add(2*time.Second))

	records, err := svc.LoadOrdered("drkim", "cardiology")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "55M chest pain", records[0].Content)
	assert.Equal(t, "impression: ACS", records[1].Content)
	assert.Equal(t, "next step?", records[2].Content)
}

func TestLoadOrderedEmptyForUnknownKey(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))

	records, err := svc.LoadOrdered("nobody", "cardiology")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSubjectIsolation(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))
	now := time.Now()

	appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "heart question", now)
	appendRecord(t, svc, "drkim", "pulmonology", models.RoleUser, "lung question", now)

	cardio, err := svc.LoadOrdered("drkim", "cardiology")
	require.NoError(t, err)
	require.Len(t, cardio, 1)
	assert.Equal(t, "heart question", cardio[0].Content)

	pulmo, err := svc.LoadOrdered("drkim", "pulmonology")
	require.NoError(t, err)
	require.Len(t, pulmo, 1)
	assert.Equal(t, "lung question", pulmo[0].Content)
}

func TestDeleteByID(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))
	now := time.Now()

	first := appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "first", now)
	second := appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "second", now.Add(time.Second))

	require.NoError(t, svc.DeleteByID("drkim", "cardiology", second.ID))

	records, err := svc.LoadOrdered("drkim", "cardiology")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, first.ID, records[0].ID)
}

func TestDeleteByIDScopedToOwner(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))

	rec := appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "mine", time.Now())

	// A different user cannot delete drkim's record even with a valid ID.
	err := svc.DeleteByID("drlee", "cardiology", rec.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	records, err := svc.LoadOrdered("drkim", "cardiology")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDeleteByIDNotFound(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))

	err := svc.DeleteByID("drkim", "cardiology", 42)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDeleteLatestMatchingPicksMostRecent(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))
	now := time.Now()

	// Two records with byte-identical content: the legacy content-keyed path
	// always removes the most recent one, which is exactly why DeleteByID
	// exists.
	earlier := appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "same text", now)
	appendRecord(t, svc, "drkim", "cardiology", models.RoleUser, "same text", now.Add(time.Minute))

	require.NoError(t, svc.DeleteLatestMatching("drkim", "cardiology", "same text"))

	records, err := svc.LoadOrdered("drkim", "cardiology")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, earlier.ID, records[0].ID)
}

func TestDeleteLatestMatchingNotFound(t *testing.T) {
	svc := NewTranscriptService(newTestDB(t))

	err := svc.DeleteLatestMatching("drkim", "cardiology", "never said this")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
