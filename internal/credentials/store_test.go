package credentials

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/store"
)

func newSettings(t *testing.T) *store.SettingsRepo {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.NewSettingsRepo(db)
}

type failingSettings struct{}

func (failingSettings) Get(string) (string, error) { return "", nil }
func (failingSettings) SetMany(map[string]string) error { return errors.New("disk full") }

func TestStore_Defaults(t *testing.T) {
	s, err := NewStore(domain.Credentials{ClientID: "env-id", ClientSecret: "env-secret"}, newSettings(t), logger.Discard())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if got := s.Get(); got.ClientID != "env-id" || got.ClientSecret != "env-secret" {
		t.Errorf("Expected env defaults, got %+v", got)
	}
	if !s.Configured() {
		t.Error("Expected store to be configured")
	}
}

func TestStore_SetPersists(t *testing.T) {
	settings := newSettings(t)
	s, _ := NewStore(domain.Credentials{ClientID: "env-id", ClientSecret: "env-secret"}, settings, logger.Discard())

	if err := s.Set(domain.Credentials{ClientID: "new-id", ClientSecret: "new-secret"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reloaded, err := NewStore(domain.Credentials{ClientID: "env-id", ClientSecret: "env-secret"}, settings, logger.Discard())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if got := reloaded.Get(); got.ClientID != "new-id" || got.ClientSecret != "new-secret" {
		t.Errorf("Expected saved pair to override env, got %+v", got)
	}
}

func TestStore_SetEmptyDisables(t *testing.T) {
	s, _ := NewStore(domain.Credentials{ClientID: "id", ClientSecret: "secret"}, nil, logger.Discard())

	if err := s.Set(domain.Credentials{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if s.Configured() {
		t.Error("Expected empty credentials to disable the store")
	}
}

func TestStore_FailedSaveKeepsOldPair(t *testing.T) {
	s, _ := NewStore(domain.Credentials{ClientID: "id", ClientSecret: "secret"}, failingSettings{}, logger.Discard())

	if err := s.Set(domain.Credentials{ClientID: "x", ClientSecret: "y"}); err == nil {
		t.Fatal("Expected save error")
	}
	if got := s.Get(); got.ClientID != "id" {
		t.Errorf("Expected old pair after failed save, got %+v", got)
	}
}

func TestStore_Masked(t *testing.T) {
	s, _ := NewStore(domain.Credentials{ClientID: "id", ClientSecret: "secret"}, nil, logger.Discard())

	masked := s.Masked()
	if masked.ClientID != "id" || masked.ClientSecret != "***masked***" {
		t.Errorf("Unexpected masked pair %+v", masked)
	}
	if s.Get().ClientSecret != "secret" {
		t.Error("Expected Masked to leave the stored secret alone")
	}

	empty, _ := NewStore(domain.Credentials{}, nil, logger.Discard())
	if empty.Masked().ClientSecret != "" {
		t.Error("Expected empty secret to stay empty")
	}
}

func TestStore_ConcurrentSetNeverTears(t *testing.T) {
	s, _ := NewStore(domain.Credentials{ClientID: "a", ClientSecret: "a"}, nil, logger.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Set(domain.Credentials{ClientID: "b", ClientSecret: "b"})
		}()
		go func() {
			defer wg.Done()
			if c := s.Get(); c.ClientID != c.ClientSecret {
				t.Errorf("Observed torn pair %+v", c)
			}
		}()
	}
	wg.Wait()
}
