package session

import (
	"errors"
	"sync"
	"time"

	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/pkg/logger"
)

var (
	ErrNoSession          = errors.New("no active session for user")
	ErrIndexOutOfRange    = errors.New("message index out of range")
	ErrGenerationInFlight = errors.New("a response is already being generated for this session")
)

// TranscriptStore is the durable side of the mirror.
type TranscriptStore interface {
	Append(rec *models.ChatRecord) error
	LoadOrdered(username, subject string) ([]models.ChatRecord, error)
	DeleteByID(username, subject string, id uint) error
}

type state struct {
	session Session
	busy    bool
}

// Manager holds the in-memory session per authenticated user and keeps it
// reconciled with the transcript store across login, subject switches and
// deletions. One session per username; a second login replaces the first.
type Manager struct {
	mu       sync.Mutex
	store    TranscriptStore
	log      *logger.Logger
	sessions map[string]*state
}

// NewManager creates a session manager backed by the given store.
func NewManager(store TranscriptStore, log *logger.Logger) *Manager {
	return &Manager{
		store:    store,
		log:      log,
		sessions: make(map[string]*state),
	}
}

// Login creates a fresh session on the default subject and loads its
// transcript from the store.
func (m *Manager) Login(username string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &state{session: Session{
		Username: username,
		Subject:  models.DefaultSubject().ID,
	}}
	if err := m.loadLocked(st); err != nil {
		return Session{}, err
	}
	m.sessions[username] = st
	return snapshot(st), nil
}

// Logout discards the in-memory session. Durable data is untouched.
func (m *Manager) Logout(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, username)
}

// Snapshot returns a copy of the current session. An empty mirror with an
// active subject is reloaded from the store first, so a page reload always
// sees durable history.
func (m *Manager) Snapshot(username string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[username]
	if !ok {
		return Session{}, ErrNoSession
	}
	if len(st.session.Entries) == 0 && st.session.Subject != "" {
		if err := m.loadLocked(st); err != nil {
			return Session{}, err
		}
	}
	return snapshot(st), nil
}

// SelectSubject switches the active subject. A change wipes the mirror and
// replaces it wholesale with the new subject's stored transcript. While a
// generation is in flight the subject is pinned, so a switch from a second
// tab cannot redirect the pending answer into another subject's transcript.
func (m *Manager) SelectSubject(username, subject string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[username]
	if !ok {
		return Session{}, ErrNoSession
	}

	if st.session.Subject != subject {
		if st.busy {
			return Session{}, ErrGenerationInFlight
		}
		st.session.Subject = subject
		if err := m.loadLocked(st); err != nil {
			return Session{}, err
		}
	} else if len(st.session.Entries) == 0 {
		if err := m.loadLocked(st); err != nil {
			return Session{}, err
		}
	}
	return snapshot(st), nil
}

// Append stores a new message durably under the subject it was submitted
// for, then mirrors it. The store write goes first: if it fails the mirror
// is left untouched and the error surfaces, so mirror and store cannot drift
// apart. The caller names the subject explicitly; if the session has moved
// on (a re-login while the message was produced), the record still lands in
// the right partition and only the mirroring is skipped.
func (m *Manager) Append(username, subject, role, content, image string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[username]
	if !ok {
		return Entry{}, ErrNoSession
	}

	rec := models.ChatRecord{
		Username:  username,
		Subject:   subject,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	if err := m.store.Append(&rec); err != nil {
		m.log.LogError(err, "transcript append failed",
			"username", username, "subject", subject)
		return Entry{}, err
	}

	entry := entryFromRecord(rec)
	entry.Image = image
	if st.session.Subject == subject {
		st.session.Entries = append(st.session.Entries, entry)
	}
	return entry, nil
}

// Delete removes the message at the given mirror index, store first. The
// store delete is keyed by the entry's record ID, so two messages with
// identical content can never be confused. An out-of-range index mutates
// nothing and is reported as a logic error.
func (m *Manager) Delete(username string, index int) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[username]
	if !ok {
		return Session{}, ErrNoSession
	}
	if index < 0 || index >= len(st.session.Entries) {
		return snapshot(st), ErrIndexOutOfRange
	}

	entry := st.session.Entries[index]
	if err := m.store.DeleteByID(username, st.session.Subject, entry.RecordID); err != nil {
		m.log.LogError(err, "transcript delete failed",
			"username", username, "record_id", entry.RecordID)
		return snapshot(st), err
	}

	st.session.Entries = append(st.session.Entries[:index], st.session.Entries[index+1:]...)
	return snapshot(st), nil
}

// SetIncluded flips the export inclusion flag on one mirror entry.
func (m *Manager) SetIncluded(username string, index int, included bool) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[username]
	if !ok {
		return Session{}, ErrNoSession
	}
	if index < 0 || index >= len(st.session.Entries) {
		return snapshot(st), ErrIndexOutOfRange
	}

	st.session.Entries[index].Included = included
	return snapshot(st), nil
}

// BeginGeneration switches to the submitted subject and marks the session
// busy for the duration of a model call, in one step, so no subject change
// can slip in between selection and the busy gate. A second submission while
// one is in flight is rejected rather than queued.
func (m *Manager) BeginGeneration(username, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[username]
	if !ok {
		return ErrNoSession
	}
	if st.busy {
		return ErrGenerationInFlight
	}
	if st.session.Subject != subject {
		st.session.Subject = subject
		if err := m.loadLocked(st); err != nil {
			return err
		}
	}
	st.busy = true
	return nil
}

// EndGeneration clears the busy flag set by BeginGeneration.
func (m *Manager) EndGeneration(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.sessions[username]; ok {
		st.busy = false
	}
}

// loadLocked replaces the mirror wholesale with the stored transcript for
// the session's subject. Caller holds m.mu.
func (m *Manager) loadLocked(st *state) error {
	records, err := m.store.LoadOrdered(st.session.Username, st.session.Subject)
	if err != nil {
		m.log.LogError(err, "transcript load failed",
			"username", st.session.Username, "subject", st.session.Subject)
		return err
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, entryFromRecord(rec))
	}
	st.session.Entries = entries
	return nil
}

// snapshot copies the session so callers cannot mutate manager state.
func snapshot(st *state) Session {
	out := st.session
	out.Entries = make([]Entry, len(st.session.Entries))
	copy(out.Entries, st.session.Entries)
	return out
}
