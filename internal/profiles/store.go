// Package profiles manages the user's crop profiles and which one is active.
package profiles

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"agrosense/internal/models"
	"agrosense/internal/prefs"
	"agrosense/pkg/logger"
)

var (
	ErrNotFound             = errors.New("crop profile not found")
	ErrNameRequired         = errors.New("crop profile name is required")
	ErrConfirmationRequired = errors.New("delete confirmation token missing or invalid")
)

// Store is the crop profile CRUD surface. Every mutation is written through
// to the preference store before it becomes visible.
type Store struct {
	mu       sync.RWMutex
	prefs    prefs.Store
	profiles []models.CropProfile
	selected string
	pending  map[string]string // profile id -> delete confirmation token
	newID    func() string
}

// NewStore loads stored profiles, falling back to defaults when nothing
// readable is stored. The selection defaults to the first profile.
func NewStore(p prefs.Store, defaults []models.CropProfile) *Store {
	if defaults == nil {
		defaults = []models.CropProfile{models.DefaultCropProfile()}
	}
	s := &Store{
		prefs:   p,
		pending: make(map[string]string),
		newID:   func() string { return uuid.NewString() },
	}
	s.profiles = prefs.LoadOrDefault(p, prefs.KeyCropProfiles, cloneAll(defaults))
	if s.profiles == nil {
		s.profiles = []models.CropProfile{}
	}

	firstID := ""
	if len(s.profiles) > 0 {
		firstID = s.profiles[0].ID
	}
	s.selected = prefs.LoadOrDefault(p, prefs.KeySelectedCrop, firstID)
	if s.selected != "" && s.indexOf(s.selected) < 0 {
		logger.Warnf("Profiles: selected profile %s no longer exists, selecting %q", s.selected, firstID)
		s.selected = firstID
	}
	return s
}

// SetIDGenerator replaces the uuid generator. Used by tests.
func (s *Store) SetIDGenerator(gen func() string) {
	s.mu.Lock()
	s.newID = gen
	s.mu.Unlock()
}

func cloneAll(in []models.CropProfile) []models.CropProfile {
	return append([]models.CropProfile(nil), in...)
}

func (s *Store) indexOf(id string) int {
	for i, p := range s.profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// List returns every profile in creation order
func (s *Store) List() []models.CropProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.profiles)
}

// Get returns one profile by id
func (s *Store) Get(id string) (models.CropProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.CropProfile{}, ErrNotFound
	}
	return s.profiles[i], nil
}

// Create stores a new profile under a generated id. fields.ID is ignored.
func (s *Store) Create(fields models.CropProfile) (models.CropProfile, error) {
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return models.CropProfile{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := fields
	created.ID = s.newID()
	created.Name = name

	next := append(cloneAll(s.profiles), created)
	if err := s.prefs.Save(prefs.KeyCropProfiles, next); err != nil {
		return models.CropProfile{}, fmt.Errorf("failed to save crop profiles: %w", err)
	}
	s.profiles = next
	return created, nil
}

// Update replaces the fields of an existing profile, keeping its id
func (s *Store) Update(id string, fields models.CropProfile) (models.CropProfile, error) {
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return models.CropProfile{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.CropProfile{}, ErrNotFound
	}
	updated := fields
	updated.ID = id
	updated.Name = name

	next := cloneAll(s.profiles)
	next[i] = updated
	if err := s.prefs.Save(prefs.KeyCropProfiles, next); err != nil {
		return models.CropProfile{}, fmt.Errorf("failed to save crop profiles: %w", err)
	}
	s.profiles = next
	return updated, nil
}

// RequestDelete starts a deletion and returns the token Delete must be given
func (s *Store) RequestDelete(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return "", ErrNotFound
	}
	token := uuid.NewString()
	s.pending[id] = token
	return token, nil
}

// Delete removes a profile once confirmed with the token from RequestDelete.
// Deleting the active profile clears the selection.
func (s *Store) Delete(id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	want, ok := s.pending[id]
	if !ok || token == "" || token != want {
		return ErrConfirmationRequired
	}

	next := append(cloneAll(s.profiles[:i]), s.profiles[i+1:]...)
	if err := s.prefs.Save(prefs.KeyCropProfiles, next); err != nil {
		return fmt.Errorf("failed to save crop profiles: %w", err)
	}
	s.profiles = next
	delete(s.pending, id)

	if s.selected == id {
		s.selected = ""
		if err := s.prefs.Save(prefs.KeySelectedCrop, ""); err != nil {
			return fmt.Errorf("failed to save selected crop: %w", err)
		}
	}
	return nil
}

// CancelDelete drops a pending deletion
func (s *Store) CancelDelete(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Select makes id the active profile; an empty id clears the selection
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && s.indexOf(id) < 0 {
		return ErrNotFound
	}
	if err := s.prefs.Save(prefs.KeySelectedCrop, id); err != nil {
		return fmt.Errorf("failed to save selected crop: %w", err)
	}
	s.selected = id
	return nil
}

// SelectedID returns the active profile id, or "" when none is active
func (s *Store) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Active returns a copy of the active profile, or nil
func (s *Store) Active() *models.CropProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(s.selected)
	if s.selected == "" || i < 0 {
		return nil
	}
	p := s.profiles[i]
	return &p
}
