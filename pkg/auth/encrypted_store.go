package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/pbkdf2"
	"yggharvest/pkg/session"
)

const (
	vaultVersion    = 2
	vaultSaltSize   = 32
	vaultKeySize    = 32
	vaultIterations = 200000
	passphraseFile  = ".passphrase"
)

// vaultFile is the on-disk layout. Profile names and origins stay readable
// so they can be listed; each profile's session secrets are sealed on
// their own with the profile name as associated data.
type vaultFile struct {
	Version    int                    `json:"version"`
	Salt       []byte                 `json:"salt"`
	Iterations int                    `json:"iterations"`
	Profiles   map[string]vaultRecord `json:"profiles"`
}

type vaultRecord struct {
	Origin  string    `json:"origin,omitempty"`
	Updated time.Time `json:"updated"`
	Sealed  []byte    `json:"sealed"`
}

// sessionSecrets is the sealed part of a record. Cookies are kept as the
// parsed name/value map a session.Handle is built from.
type sessionSecrets struct {
	Cookies   map[string]string `json:"cookies"`
	Passkey   string            `json:"passkey,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// EncryptedFileStore keeps tracker sessions in an AES-GCM sealed vault.
// The key is derived with PBKDF2 from YGGHARVEST_PASSPHRASE, or from a
// random passphrase kept next to the vault.
type EncryptedFileStore struct {
	fs         afero.Fs
	path       string
	passphrase []byte

	mu sync.RWMutex

	keyMu   sync.Mutex
	key     []byte
	keySalt []byte
}

func NewEncryptedFileStore(fs afero.Fs, path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	passphrase, err := vaultPassphrase(fs, filepath.Join(filepath.Dir(path), passphraseFile))
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{fs: fs, path: path, passphrase: []byte(passphrase)}, nil
}

func (e *EncryptedFileStore) Store(p *Profile) error {
	if p == nil || p.Name == "" {
		return ErrInvalidProfile
	}
	cookies := session.ParseCookieString(p.Cookies)
	if len(cookies) == 0 {
		return fmt.Errorf("%w: no cookies to store", ErrInvalidProfile)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		v, err = newVault()
	}
	if err != nil {
		return err
	}

	sealed, err := e.seal(v, p.Name, sessionSecrets{Cookies: cookies, Passkey: p.Passkey, UserAgent: p.UserAgent})
	if err != nil {
		return err
	}

	updated := p.LastModified
	if updated.IsZero() {
		updated = time.Now()
	}
	v.Profiles[p.Name] = vaultRecord{Origin: p.BaseURL, Updated: updated.UTC(), Sealed: sealed}
	return e.save(v)
}

func (e *EncryptedFileStore) Retrieve(name string) (*Profile, error) {
	if name == "" {
		return nil, ErrInvalidProfile
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, ok := v.Profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return e.open(v, name, rec)
}

// List returns every stored profile sorted by name.
func (e *EncryptedFileStore) List() ([]*Profile, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		return []*Profile{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(v.Profiles))
	for name := range v.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Profile, 0, len(names))
	for _, name := range names {
		p, err := e.open(v, name, v.Profiles[name])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes name. The vault file goes away with the last profile.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidProfile
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		return ErrProfileNotFound
	}
	if err != nil {
		return err
	}
	if _, ok := v.Profiles[name]; !ok {
		return ErrProfileNotFound
	}

	delete(v.Profiles, name)
	if len(v.Profiles) == 0 {
		return e.fs.Remove(e.path)
	}
	return e.save(v)
}

func (e *EncryptedFileStore) Exists(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		return false
	}
	_, ok := v.Profiles[name]
	return ok
}

func newVault() (*vaultFile, error) {
	salt := make([]byte, vaultSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &vaultFile{
		Version:    vaultVersion,
		Salt:       salt,
		Iterations: vaultIterations,
		Profiles:   make(map[string]vaultRecord),
	}, nil
}

func (e *EncryptedFileStore) load() (*vaultFile, error) {
	content, err := afero.ReadFile(e.fs, e.path)
	if err != nil {
		return nil, err
	}

	var v vaultFile
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported vault version %d", v.Version)
	}
	if len(v.Salt) == 0 || v.Iterations <= 0 {
		return nil, errors.New("vault has no key parameters")
	}
	if v.Profiles == nil {
		v.Profiles = make(map[string]vaultRecord)
	}
	return &v, nil
}

// save replaces the vault through a temp file and rename.
func (e *EncryptedFileStore) save(v *vaultFile) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vault: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := afero.WriteFile(e.fs, tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	if err := e.fs.Rename(tmp, e.path); err != nil {
		_ = e.fs.Remove(tmp)
		return fmt.Errorf("failed to replace vault: %w", err)
	}
	return nil
}

// cipherFor derives the vault key once per salt and returns a GCM AEAD.
func (e *EncryptedFileStore) cipherFor(v *vaultFile) (cipher.AEAD, error) {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()

	if e.key == nil || string(e.keySalt) != string(v.Salt) {
		e.key = pbkdf2.Key(e.passphrase, v.Salt, v.Iterations, vaultKeySize, sha256.New)
		e.keySalt = append([]byte(nil), v.Salt...)
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (e *EncryptedFileStore) seal(v *vaultFile, name string, s sessionSecrets) ([]byte, error) {
	aead, err := e.cipherFor(v)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, recordAAD(name)), nil
}

func (e *EncryptedFileStore) open(v *vaultFile, name string, rec vaultRecord) (*Profile, error) {
	aead, err := e.cipherFor(v)
	if err != nil {
		return nil, err
	}
	if len(rec.Sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("profile %q: sealed record too short", name)
	}

	nonce, body := rec.Sealed[:aead.NonceSize()], rec.Sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, recordAAD(name))
	if err != nil {
		return nil, fmt.Errorf("profile %q: cannot decrypt, wrong passphrase or tampered vault: %w", name, err)
	}

	var s sessionSecrets
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return &Profile{
		Name:         name,
		Cookies:      session.FormatCookieString(s.Cookies),
		Passkey:      s.Passkey,
		BaseURL:      rec.Origin,
		UserAgent:    s.UserAgent,
		LastModified: rec.Updated,
	}, nil
}

func recordAAD(name string) []byte {
	return []byte("yggharvest profile " + name)
}

func vaultPassphrase(fs afero.Fs, path string) (string, error) {
	if pass := os.Getenv("YGGHARVEST_PASSPHRASE"); pass != "" {
		return pass, nil
	}
	if content, err := afero.ReadFile(fs, path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := base64.RawURLEncoding.EncodeToString(b)
	if err := afero.WriteFile(fs, path, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}
