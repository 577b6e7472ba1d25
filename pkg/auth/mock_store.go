package auth

import "sync"

// MockStore is an in-memory ProfileStore with error injection for tests.
type MockStore struct {
	profiles map[string]*Profile
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

func NewMockStore() *MockStore {
	return &MockStore{profiles: make(map[string]*Profile)}
}

func (m *MockStore) Store(p *Profile) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if p == nil || p.Name == "" {
		return ErrInvalidProfile
	}
	cp := *p
	m.profiles[p.Name] = &cp
	return nil
}

func (m *MockStore) Retrieve(name string) (*Profile, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) List() ([]*Profile, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[name]; !ok {
		return ErrProfileNotFound
	}
	delete(m.profiles, name)
	return nil
}

func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.profiles[name]
	return ok
}

// Count returns the number of stored profiles.
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

// NewMockManager returns a Manager backed by a single MockStore.
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
