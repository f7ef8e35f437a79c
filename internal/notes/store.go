// Package notes keeps the per-device event log.
package notes

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agrosense/internal/models"
	"agrosense/internal/prefs"
)

var (
	ErrEmptyContent = errors.New("note content is empty")
	ErrNotFound     = errors.New("note not found")
	ErrNoDevice     = errors.New("device id is required")
)

// Store appends and deletes notes, one persisted list per device
type Store struct {
	mu    sync.Mutex
	prefs prefs.Store
	now   func() time.Time
}

// NewStore creates a notes store over p
func NewStore(p prefs.Store) *Store {
	return &Store{prefs: p, now: time.Now}
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) load(deviceID string) []models.Note {
	list := prefs.LoadOrDefault(s.prefs, prefs.NotesKey(deviceID), []models.Note{})
	if list == nil {
		list = []models.Note{}
	}
	return list
}

// List returns a device's notes, newest first
func (s *Store) List(deviceID string) []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(deviceID)
}

// Add prepends a note to the device's log
func (s *Store) Add(deviceID, content string) (models.Note, error) {
	if deviceID == "" {
		return models.Note{}, ErrNoDevice
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Note{}, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	note := models.Note{
		ID:        uuid.NewString(),
		Timestamp: s.now().UnixMilli(),
		Content:   content,
	}
	list := append([]models.Note{note}, s.load(deviceID)...)
	if err := s.prefs.Save(prefs.NotesKey(deviceID), list); err != nil {
		return models.Note{}, fmt.Errorf("failed to save notes: %w", err)
	}
	return note, nil
}

// Delete removes one note from the device's log
func (s *Store) Delete(deviceID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load(deviceID)
	for i, n := range list {
		if n.ID != noteID {
			continue
		}
		next := append(list[:i:i], list[i+1:]...)
		if err := s.prefs.Save(prefs.NotesKey(deviceID), next); err != nil {
			return fmt.Errorf("failed to save notes: %w", err)
		}
		return nil
	}
	return ErrNotFound
}
