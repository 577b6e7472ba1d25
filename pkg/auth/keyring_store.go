package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "yggharvest"
	keyringPrefix  = "profile_"
	// keyringIndex lists stored profile names; the keyring API cannot
	// enumerate entries itself.
	keyringIndex = "profiles_index"
)

// KeyringStore keeps profiles in the system keychain.
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when it is unusable.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(p *Profile) error {
	if p == nil || p.Name == "" {
		return ErrInvalidProfile
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+p.Name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.updateIndex(func(names map[string]bool) { names[p.Name] = true })
}

func (k *KeyringStore) Retrieve(name string) (*Profile, error) {
	if name == "" {
		return nil, ErrInvalidProfile
	}
	data, err := keyring.Get(keyringService, keyringPrefix+name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &p, nil
}

func (k *KeyringStore) List() ([]*Profile, error) {
	names, err := k.index()
	if err != nil {
		return nil, err
	}
	profiles := make([]*Profile, 0, len(names))
	for _, name := range names {
		if p, err := k.Retrieve(name); err == nil {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidProfile
	}
	if err := keyring.Delete(keyringService, keyringPrefix+name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.updateIndex(func(names map[string]bool) { delete(names, name) })
}

func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+name)
	return err == nil
}

func (k *KeyringStore) index() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	return names, nil
}

func (k *KeyringStore) updateIndex(mutate func(map[string]bool)) error {
	current, err := k.index()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(current)+1)
	for _, n := range current {
		set[n] = true
	}
	mutate(set)

	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndex, string(data))
}
