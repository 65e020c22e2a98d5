// Package prefs persists lightweight local preferences (theme, language,
// onboarding flag) outside the document store. The file survives restarts
// and is not tied to any identity.
package prefs

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/nayhtooyan/collabtask/internal/auth/domain"
)

const (
	keyTheme          = "theme"
	keyLanguage       = "language"
	keyNotifications  = "notifications"
	keyOnboardingSeen = "onboarding_seen"
)

// Store is a durable key-value preference store. Reads happen once at
// construction; every change is written through synchronously.
type Store struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// NewStore loads preferences from path, falling back to defaults when the
// file does not exist yet.
func NewStore(path string) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault(keyTheme, string(domain.ThemeLight))
	v.SetDefault(keyLanguage, string(domain.LanguageEnglish))
	v.SetDefault(keyNotifications, true)
	v.SetDefault(keyOnboardingSeen, false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[Prefs] Could not read %s, using defaults: %v", path, err)
		}
	}

	return &Store{v: v, path: path}
}

// Preferences returns the current preference snapshot.
func (s *Store) Preferences() domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Preferences{
		Theme:         domain.Theme(s.v.GetString(keyTheme)),
		Language:      domain.Language(s.v.GetString(keyLanguage)),
		Notifications: s.v.GetBool(keyNotifications),
	}
}

// OnboardingSeen reports whether onboarding was already acknowledged.
func (s *Store) OnboardingSeen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetBool(keyOnboardingSeen)
}

// SetTheme persists the theme choice.
func (s *Store) SetTheme(theme domain.Theme) error {
	return s.write(keyTheme, string(theme))
}

// SetLanguage persists the language choice.
func (s *Store) SetLanguage(lang domain.Language) error {
	return s.write(keyLanguage, string(lang))
}

// SetNotifications persists the notification toggle.
func (s *Store) SetNotifications(enabled bool) error {
	return s.write(keyNotifications, enabled)
}

// SetOnboardingSeen persists the onboarding acknowledgement.
func (s *Store) SetOnboardingSeen(seen bool) error {
	return s.write(keyOnboardingSeen, seen)
}

func (s *Store) write(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return s.v.WriteConfigAs(s.path)
}
