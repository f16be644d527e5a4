package energy

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"energymon/internal/storage"
)

const (
	// StorageNamespace is the storage namespace owned by this package
	StorageNamespace = "energy"

	settingsKey = "settings"
)

// SettingsStore keeps the current normalized settings in memory and writes
// every change through to storage. Storage may be nil.
type SettingsStore struct {
	mu      sync.RWMutex
	current Settings
	storage storage.Storage
	logger  *log.Logger
}

// NewSettingsStore loads settings from st, falling back to defaults.
// Stored settings that needed repair are written back.
func NewSettingsStore(st storage.Storage, logger *log.Logger) *SettingsStore {
	s := &SettingsStore{
		current: DefaultSettings(),
		storage: st,
		logger:  logger,
	}
	s.load()
	return s
}

func (s *SettingsStore) load() {
	if s.storage == nil {
		return
	}

	loaded := DefaultSettings()
	err := s.storage.GetJSON(StorageNamespace, settingsKey, &loaded)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logf("[Energy] No stored settings, using defaults")
		return
	case err != nil:
		s.logf("[Energy] Failed to load settings, using defaults: %v", err)
		return
	}

	if Normalize(&loaded) {
		s.logf("[Energy] Stored settings were out of range and have been normalized")
		if err := s.storage.SetJSON(StorageNamespace, settingsKey, loaded); err != nil {
			s.logf("[Energy] Failed to save normalized settings: %v", err)
		}
	}
	s.current = loaded
}

// Current returns a copy of the current settings
func (s *SettingsStore) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Apply merges a partial update, normalizes and persists the result
func (s *SettingsStore) Apply(p SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Merge(s.current, p)
	if err := s.save(next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// Replace normalizes and persists a full settings value
func (s *SettingsStore) Replace(next Settings) (Settings, error) {
	Normalize(&next)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// Reset drops the stored settings so the defaults apply, now and on the
// next start
func (s *SettingsStore) Reset() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.Delete(StorageNamespace, settingsKey); err != nil {
			return s.current, fmt.Errorf("failed to delete energy settings: %w", err)
		}
	}
	s.current = DefaultSettings()
	return s.current, nil
}

func (s *SettingsStore) save(next Settings) error {
	if s.storage == nil {
		return nil
	}
	if err := s.storage.SetJSON(StorageNamespace, settingsKey, next); err != nil {
		return fmt.Errorf("failed to save energy settings: %w", err)
	}
	return nil
}

func (s *SettingsStore) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
