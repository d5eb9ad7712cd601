// Package credentials holds the provider client id/secret pair in effect.
package credentials

import (
	"fmt"
	"sync"

	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/store"
)

// Settings persists key/value pairs. *store.SettingsRepo satisfies it.
type Settings interface {
	Get(key string) (string, error)
	SetMany(values map[string]string) error
}

// Store is safe for concurrent use. Both fields are always replaced together.
type Store struct {
	settings Settings
	logger   *logger.Logger
	creds    domain.Credentials
	mu       sync.RWMutex
}

// NewStore starts from defaults and then applies a pair previously saved in
// settings, if any. settings may be nil for a memory-only store.
func NewStore(defaults domain.Credentials, settings Settings, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Default()
	}
	s := &Store{
		settings: settings,
		logger:   log.WithComponent("credentials"),
		creds:    defaults,
	}
	if settings == nil {
		return s, nil
	}

	id, err := settings.Get(store.SettingSpotifyClientID)
	if err != nil {
		return nil, fmt.Errorf("load client id: %w", err)
	}
	secret, err := settings.Get(store.SettingSpotifyClientSecret)
	if err != nil {
		return nil, fmt.Errorf("load client secret: %w", err)
	}
	if id != "" || secret != "" {
		s.creds = domain.Credentials{ClientID: id, ClientSecret: secret}
		s.logger.Info("Loaded saved credentials", "configured", s.creds.Configured())
	}
	return s, nil
}

func (s *Store) Get() domain.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Set replaces the pair. Empty strings disable provider features. The pair is
// persisted before it becomes visible, so a failed save changes nothing.
func (s *Store) Set(creds domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings != nil {
		if err := s.settings.SetMany(map[string]string{
			store.SettingSpotifyClientID:     creds.ClientID,
			store.SettingSpotifyClientSecret: creds.ClientSecret,
		}); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
	}
	s.creds = creds
	s.logger.Info("Credentials updated", "configured", creds.Configured())
	return nil
}

func (s *Store) Configured() bool {
	return s.Get().Configured()
}

// Masked returns the pair with the secret hidden, for display.
func (s *Store) Masked() domain.Credentials {
	creds := s.Get()
	if creds.ClientSecret != "" {
		creds.ClientSecret = constants.MaskedSecret
	}
	return creds
}
