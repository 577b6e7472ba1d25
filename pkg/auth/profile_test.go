package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"yggharvest/pkg/session"
)

func testProfile(name string) *Profile {
	return &Profile{
		Name:    name,
		Cookies: "ygg_=session_value_12345; cf_clearance=challenge_token_678",
		Passkey: "abcdef0123456789",
	}
}

func TestManagerLifecycle(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(testProfile("main")))
	assert.Equal(t, 1, store.Count())

	p, err := manager.Retrieve("main")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789", p.Passkey)
	assert.False(t, p.LastModified.IsZero())

	list, err := manager.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, manager.Delete("main"))
	_, err = manager.Retrieve("main")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, manager.Delete("main"), ErrProfileNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	err := manager.Store(&Profile{Name: "empty", Cookies: " ; "})
	assert.Error(t, err)

	p := &Profile{Cookies: "a=1"}
	require.NoError(t, manager.Store(p))
	assert.Equal(t, DefaultProfile, p.Name)
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(testProfile("main")))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	p, err := manager.Retrieve("main")
	require.NoError(t, err)
	assert.Equal(t, "main", p.Name)
}

func TestProfileHandle(t *testing.T) {
	p := testProfile("main")
	h, err := p.Handle("https://www.yggtorrent.top")
	require.NoError(t, err)
	assert.Equal(t, "https://www.yggtorrent.top", h.OriginString())
	assert.Equal(t, []string{"cf_clearance", "ygg_"}, h.CookieNames())

	p.BaseURL = "https://ygg.example.org"
	h, err = p.Handle("https://www.yggtorrent.top")
	require.NoError(t, err)
	assert.Equal(t, "https://ygg.example.org", h.OriginString())
}

func TestSanitize(t *testing.T) {
	s := Sanitize(testProfile("main"))
	assert.Equal(t, "abcd...6789", s.Passkey)
	assert.Equal(t, "cf_clearance=chal..._678; ygg_=sess...2345", s.Cookies)
	assert.Nil(t, Sanitize(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/config/yggharvest/profiles.enc"
	t.Setenv("YGGHARVEST_PASSPHRASE", "")

	store, err := NewEncryptedFileStore(fs, path)
	require.NoError(t, err)

	primary := testProfile("main")
	primary.BaseURL = "https://ygg.example.org"
	require.NoError(t, store.Store(primary))
	require.NoError(t, store.Store(testProfile("alt")))

	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "session_value_12345")
	assert.NotContains(t, string(raw), "abcdef0123456789")
	assert.Contains(t, string(raw), "https://ygg.example.org", "origins stay readable")

	pass, err := afero.ReadFile(fs, "/config/yggharvest/.passphrase")
	require.NoError(t, err)
	assert.NotEmpty(t, pass)

	reopened, err := NewEncryptedFileStore(fs, path)
	require.NoError(t, err)
	p, err := reopened.Retrieve("main")
	require.NoError(t, err)
	assert.Equal(t, session.ParseCookieString(primary.Cookies), session.ParseCookieString(p.Cookies))
	assert.Equal(t, primary.Passkey, p.Passkey)
	assert.Equal(t, "https://ygg.example.org", p.BaseURL)
	assert.False(t, p.LastModified.IsZero())

	h, err := p.Handle("https://www.yggtorrent.top")
	require.NoError(t, err)
	assert.Equal(t, "https://ygg.example.org", h.OriginString())
	assert.Equal(t, "session_value_12345", h.Cookies()["ygg_"])

	list, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alt", list[0].Name)
	assert.True(t, reopened.Exists("main"))

	require.NoError(t, reopened.Delete("main"))
	require.NoError(t, reopened.Delete("alt"))
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, reopened.Delete("alt"), ErrProfileNotFound)
}

func TestEncryptedFileStoreRejectsProfileWithoutCookies(t *testing.T) {
	store, err := NewEncryptedFileStore(afero.NewMemMapFs(), "/vault/profiles.enc")
	require.NoError(t, err)

	err = store.Store(&Profile{Name: "empty", Passkey: "pk"})
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/vault/profiles.enc"

	t.Setenv("YGGHARVEST_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(fs, path)
	require.NoError(t, err)
	require.NoError(t, store.Store(testProfile("main")))

	t.Setenv("YGGHARVEST_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(fs, path)
	require.NoError(t, err)
	_, err = other.Retrieve("main")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProfileNotFound)
}

func TestEncryptedFileStoreBindsRecordToName(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/vault/profiles.enc"
	t.Setenv("YGGHARVEST_PASSPHRASE", "pw")

	store, err := NewEncryptedFileStore(fs, path)
	require.NoError(t, err)
	require.NoError(t, store.Store(testProfile("main")))

	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var v vaultFile
	require.NoError(t, json.Unmarshal(raw, &v))
	v.Profiles["copy"] = v.Profiles["main"]
	raw, err = json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, raw, 0600))

	_, err = store.Retrieve("main")
	require.NoError(t, err)
	_, err = store.Retrieve("copy")
	assert.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(testProfile("main")))
	require.NoError(t, store.Store(testProfile("alt")))
	assert.True(t, store.Exists("main"))

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, store.Delete("main"))
	assert.False(t, store.Exists("main"))
	assert.ErrorIs(t, store.Delete("main"), ErrProfileNotFound)

	list, err = store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alt", list[0].Name)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("YGGHARVEST_COOKIES", "")
	env := NewEnvironmentStore()
	assert.False(t, env.Exists(""))
	_, err := env.Retrieve("")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	t.Setenv("YGGHARVEST_COOKIES", "ygg_=x")
	t.Setenv("YGGHARVEST_PASSKEY", "pk")
	p, err := env.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p.Name)
	assert.Equal(t, "pk", p.Passkey)
	assert.ErrorIs(t, env.Store(p), ErrStoreUnavailable)
}

func TestWriteCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteCookieGuide(&buf, "https://www.yggtorrent.top")
	assert.Contains(t, buf.String(), "https://www.yggtorrent.top")
	assert.Contains(t, buf.String(), "Cookie header")
}
