package auth

import (
	"os"
	"time"

	"yggharvest/pkg/config"
)

// EnvironmentStore exposes YGGHARVEST_COOKIES and YGGHARVEST_PASSKEY as a
// read-only profile.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported.
func (e *EnvironmentStore) Store(p *Profile) error {
	return ErrStoreUnavailable
}

// Retrieve ignores name: the environment holds a single profile.
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	cookies := os.Getenv(config.EnvPrefix + "COOKIES")
	if cookies == "" {
		return nil, ErrProfileNotFound
	}
	if name == "" {
		name = DefaultProfile
	}
	return &Profile{
		Name:         name,
		Cookies:      cookies,
		Passkey:      os.Getenv(config.EnvPrefix + "PASSKEY"),
		BaseURL:      os.Getenv(config.EnvPrefix + "BASE_URL"),
		UserAgent:    os.Getenv(config.EnvPrefix + "USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Profile, error) {
	p, err := e.Retrieve("env")
	if err != nil {
		return []*Profile{}, nil
	}
	return []*Profile{p}, nil
}

// Delete is not supported.
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(config.EnvPrefix+"COOKIES") != ""
}
