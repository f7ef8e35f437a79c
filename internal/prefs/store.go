// Package prefs keeps small JSON values under string keys: preferences,
// crop profiles, the selected profile and per-device notes.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"

	"agrosense/pkg/logger"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("preference not found")

// Store reads and writes JSON-encoded values by key
type Store interface {
	Load(key string, dst any) error
	Save(key string, value any) error
	Delete(key string) error
}

// Preference is one stored key
type Preference struct {
	Key       string `gorm:"column:pref_key;primaryKey;size:191"`
	Value     string `gorm:"column:value;type:text"`
	UpdatedAt time.Time
}

func (Preference) TableName() string { return "preferences" }

// DBStore is a Store backed by a SQL database through gorm
type DBStore struct {
	db *gorm.DB
}

// Open connects with the named driver (sqlite, mysql or postgres) and migrates the table
func Open(driver, dsn string) (*DBStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if driver == "sqlite" || driver == "" {
		// single writer keeps sqlite free of "database is locked"
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDBStore(db)
}

// NewDBStore wraps an open connection and migrates the preferences table
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return nil, fmt.Errorf("failed to migrate preferences: %w", err)
	}
	return &DBStore{db: db}, nil
}

// Load decodes the value stored under key into dst
func (s *DBStore) Load(key string, dst any) error {
	var p Preference
	err := s.db.Where(&Preference{Key: key}).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(p.Value), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// Save encodes value and upserts it under key
func (s *DBStore) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	p := Preference{Key: key, Value: string(data), UpdatedAt: time.Now()}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pref_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *DBStore) Delete(key string) error {
	if err := s.db.Where(&Preference{Key: key}).Delete(&Preference{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Load(key string, dst any) error {
	m.mu.RLock()
	raw, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (m *MemoryStore) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	m.SetRaw(key, string(data))
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// SetRaw stores raw text without encoding it
func (m *MemoryStore) SetRaw(key, raw string) {
	m.mu.Lock()
	m.values[key] = raw
	m.mu.Unlock()
}

// LoadOrDefault returns the stored value for key, or def when it is missing or
// unreadable. Unreadable values are logged and never propagated.
func LoadOrDefault[T any](s Store, key string, def T) T {
	var v T
	err := s.Load(key, &v)
	if err == nil {
		return v
	}
	if !errors.Is(err, ErrNotFound) {
		logger.Warnf("Prefs: %v, using default", err)
	}
	return def
}
