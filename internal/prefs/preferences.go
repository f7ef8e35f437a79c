package prefs

import (
	"errors"
	"fmt"
	"strings"
)

// Storage keys shared with earlier dashboard releases
const (
	KeyLanguage     = "agroSenseLang_v4"
	KeyDarkMode     = "agroSenseDarkMode_v4"
	KeyCropProfiles = "agroSenseCrops_v4"
	KeySelectedCrop = "agroSenseSelectedCrop_v4"
	notesKeyPrefix  = "notes_"
	DefaultLanguage = "en"
)

// ErrInvalid marks a rejected preference value
var ErrInvalid = errors.New("invalid preference")

// NotesKey is the key holding one device's notes
func NotesKey(deviceID string) string {
	return notesKeyPrefix + deviceID
}

// Preferences are the display settings
type Preferences struct {
	Language string `json:"language"`
	DarkMode bool   `json:"darkMode"`
}

// LoadPreferences reads display settings, defaulting each one independently
func LoadPreferences(s Store) Preferences {
	return Preferences{
		Language: LoadOrDefault(s, KeyLanguage, DefaultLanguage),
		DarkMode: LoadOrDefault(s, KeyDarkMode, false),
	}
}

// SavePreferences writes both settings. An empty language is rejected.
func SavePreferences(s Store, p Preferences) error {
	lang := strings.TrimSpace(p.Language)
	if lang == "" {
		return fmt.Errorf("%w: language is required", ErrInvalid)
	}
	if err := s.Save(KeyLanguage, lang); err != nil {
		return err
	}
	return s.Save(KeyDarkMode, p.DarkMode)
}
