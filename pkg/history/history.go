// Package history remembers which feed entries were already seen so that
// repeated harvests can restrict themselves to new releases.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/models"
)

// FileName is the ledger name inside the data directory.
const FileName = "history.json"

const currentVersion = 1

// Ledger maps entry keys to the time they were first seen.
type Ledger struct {
	Version   int                  `json:"version"`
	UpdatedAt time.Time            `json:"updated_at"`
	Seen      map[string]time.Time `json:"seen"`
}

// Has reports whether e is recorded.
func (l *Ledger) Has(e *models.Entry) bool {
	_, ok := l.Seen[e.Key()]
	return ok
}

// FilterNew returns the entries not yet recorded, in order.
func (l *Ledger) FilterNew(entries []*models.Entry) []*models.Entry {
	out := make([]*models.Entry, 0, len(entries))
	for _, e := range entries {
		if !l.Has(e) {
			out = append(out, e)
		}
	}
	return out
}

// MarkSeen records entries at now and returns how many were new.
func (l *Ledger) MarkSeen(entries []*models.Entry, now time.Time) int {
	added := 0
	for _, e := range entries {
		key := e.Key()
		if _, ok := l.Seen[key]; ok {
			continue
		}
		l.Seen[key] = now
		added++
	}
	return added
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int { return len(l.Seen) }

// Store persists a Ledger as JSON.
type Store struct {
	fs     afero.Fs
	path   string
	logger logger.Logger
}

// NewStore returns a store for path. The parent directory is created on
// first save.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path, logger: logger.GetLogger()}
}

// Path returns the ledger location.
func (s *Store) Path() string { return s.path }

// Load reads the ledger. A missing file yields an empty ledger.
func (s *Store) Load() (*Ledger, error) {
	file, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newLedger(), nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var l Ledger
	if err := json.NewDecoder(file).Decode(&l); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if l.Seen == nil {
		l.Seen = make(map[string]time.Time)
	}

	s.logger.DebugWithFields("History loaded", map[string]interface{}{
		"entries":    len(l.Seen),
		"updated_at": l.UpdatedAt,
	})
	return &l, nil
}

// Save writes l atomically: temp file, sync, rename.
func (s *Store) Save(l *Ledger) error {
	l.UpdatedAt = time.Now()
	l.Version = currentVersion

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := s.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l); err != nil {
		file.Close()
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("failed to sync history file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("failed to close history file: %w", err)
	}
	if err := s.fs.Rename(tempPath, s.path); err != nil {
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	s.logger.DebugWithFields("History saved", map[string]interface{}{
		"entries": len(l.Seen),
		"path":    s.path,
	})
	return nil
}

// Reset removes the ledger file.
func (s *Store) Reset() error {
	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

func newLedger() *Ledger {
	return &Ledger{Version: currentVersion, Seen: make(map[string]time.Time)}
}
