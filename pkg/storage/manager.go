package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ChunkSize is the copy buffer used when streaming artifacts to disk.
const ChunkSize = 8192

// Manager owns one artifact directory.
type Manager struct {
	fs  afero.Fs
	dir string
}

// NewManager creates dir when needed.
func NewManager(fs afero.Fs, dir string) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{fs: fs, dir: dir}, nil
}

// Path returns the final location of name.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Exists reports whether a regular file called name is present.
func (m *Manager) Exists(name string) bool {
	info, err := m.fs.Stat(m.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Head returns up to n leading bytes of name.
func (m *Manager) Head(name string, n int) ([]byte, error) {
	f, err := m.fs.Open(m.Path(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:read], nil
}

// Save streams r into name and returns the number of bytes written.
func (m *Manager) Save(r io.Reader, name string) (int64, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return 0, fmt.Errorf("invalid artifact name %q", name)
	}

	tmp, err := afero.TempFile(m.fs, m.dir, ".~"+name+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.CopyBuffer(tmp, r, make([]byte, ChunkSize))
	closeErr := tmp.Close()

	if copyErr != nil {
		_ = m.fs.Remove(tmpName)
		return n, fmt.Errorf("failed to write artifact: %w", copyErr)
	}
	if closeErr != nil {
		_ = m.fs.Remove(tmpName)
		return n, fmt.Errorf("failed to close artifact: %w", closeErr)
	}
	if err := m.fs.Rename(tmpName, m.Path(name)); err != nil {
		_ = m.fs.Remove(tmpName)
		return n, fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return n, nil
}

// Remove deletes name. A missing file is not an error.
func (m *Manager) Remove(name string) error {
	err := m.fs.Remove(m.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Dir returns the managed directory.
func (m *Manager) Dir() string { return m.dir }

// Fs returns the backing filesystem.
func (m *Manager) Fs() afero.Fs { return m.fs }
