// Package auth stores tracker session profiles: the cookies and passkey a
// user pasted from a logged-in browser session.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/afero"
	"yggharvest/pkg/session"
)

// DefaultProfile is used when no profile name is given.
const DefaultProfile = "default"

// Profile is one stored tracker session.
type Profile struct {
	Name         string    `json:"name"`
	Cookies      string    `json:"cookies"`
	Passkey      string    `json:"passkey,omitempty"`
	BaseURL      string    `json:"base_url,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Handle builds a session handle from the profile. defaultOrigin is used
// when the profile has no base URL of its own.
func (p *Profile) Handle(defaultOrigin string) (*session.Handle, error) {
	origin := p.BaseURL
	if origin == "" {
		origin = defaultOrigin
	}
	return session.FromCookieString(origin, p.Cookies)
}

// ProfileStore is implemented by every storage backend.
type ProfileStore interface {
	Store(p *Profile) error
	Retrieve(name string) (*Profile, error)
	List() ([]*Profile, error)
	Delete(name string) error
	Exists(name string) bool
}

// Manager tries its stores in order.
type Manager struct {
	stores []ProfileStore
}

// NewManager uses the system keyring when available, then an encrypted
// file in the config directory, then the environment.
func NewManager() (*Manager, error) {
	var stores []ProfileStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(afero.NewOsFs(), filepath.Join(configDir, "profiles.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a Manager over explicit stores.
func NewManagerWithStores(stores ...ProfileStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves p in the first store that accepts it.
func (m *Manager) Store(p *Profile) error {
	if p.Name == "" {
		p.Name = DefaultProfile
	}
	if len(session.ParseCookieString(p.Cookies)) == 0 {
		return errors.New("at least one cookie is required")
	}
	p.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(p)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store profile: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the named profile from the first store holding it.
func (m *Manager) Retrieve(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	for _, store := range m.stores {
		if p, err := store.Retrieve(name); err == nil && p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// List merges all stores, keeping the newest copy of each profile.
func (m *Manager) List() ([]*Profile, error) {
	byName := make(map[string]*Profile)
	for _, store := range m.stores {
		profiles, err := store.List()
		if err != nil {
			continue
		}
		for _, p := range profiles {
			if existing, ok := byName[p.Name]; !ok || p.LastModified.After(existing.LastModified) {
				byName[p.Name] = p
			}
		}
	}

	result := make([]*Profile, 0, len(byName))
	for _, p := range byName {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes the profile from every store.
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}
	if deleted {
		return nil
	}
	if lastErr != nil && !errors.Is(lastErr, ErrProfileNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete profile: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// ConfigDir returns the per-user configuration directory, creating it.
func ConfigDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "yggharvest")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "yggharvest")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "yggharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "yggharvest")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Sanitize returns a copy of p with secrets masked for display.
func Sanitize(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	masked := *p
	masked.Passkey = Mask(p.Passkey)

	cookies := session.ParseCookieString(p.Cookies)
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	masked.Cookies = ""
	for i, name := range names {
		if i > 0 {
			masked.Cookies += "; "
		}
		masked.Cookies += name + "=" + Mask(cookies[name])
	}
	return &masked
}

// Mask hides all but the first and last four characters of s.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidProfile   = errors.New("invalid profile")
	ErrStoreUnavailable = errors.New("profile store unavailable")
)
