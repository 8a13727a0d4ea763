package service

import (
	"errors"

	"kmle-tutor/backend/internal/models"

	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("transcript record not found")

// TranscriptService owns the durable per-(username, subject) chat history.
type TranscriptService struct {
	db *gorm.DB
}

// NewTranscriptService creates a new transcript service
func NewTranscriptService(db *gorm.DB) *TranscriptService {
	return &TranscriptService{db: db}
}

// Append durably inserts a record and fills in its store-assigned ID.
func (s *TranscriptService) Append(rec *models.ChatRecord) error {
	return s.db.Create(rec).Error
}

// LoadOrdered returns all records for the key pair in ascending timestamp
// order. The auto-increment ID breaks ties between equal timestamps so the
// order is stable across reloads.
func (s *TranscriptService) LoadOrdered(username, subject string) ([]models.ChatRecord, error) {
	var records []models.ChatRecord
	err := s.db.Where("username = ? AND subject = ?", username, subject).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// DeleteByID removes exactly one record. The username/subject pair is part of
// the predicate so a stale or forged ID can never reach another partition.
func (s *TranscriptService) DeleteByID(username, subject string, id uint) error {
	result := s.db.Where("username = ? AND subject = ? AND id = ?", username, subject, id).
		Delete(&models.ChatRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteLatestMatching removes the most recent record whose content matches
// exactly. Kept for compatibility with transcripts written before records
// carried IDs; when two records share identical content this deletes the most
// recent one, which may not be the one the caller had in mind. DeleteByID is
// the unambiguous path.
func (s *TranscriptService) DeleteLatestMatching(username, subject, content string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var rec models.ChatRecord
		err := tx.Where("username = ? AND subject = ? AND content = ?", username, subject, content).
			Order("timestamp DESC").
			Order("id DESC").
			First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		return tx.Delete(&rec).Error
	})
}
