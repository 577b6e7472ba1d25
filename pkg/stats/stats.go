// Package stats summarises the artifact directory.
package stats

import (
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// FileInfo describes one artifact on disk.
type FileInfo struct {
	Name     string    `json:"name" yaml:"name"`
	Size     int64     `json:"size" yaml:"size"`
	SizeMB   float64   `json:"size_mb" yaml:"size_mb"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

// Stats is a snapshot of the artifact directory.
type Stats struct {
	TotalFiles  int        `json:"total_files" yaml:"total_files"`
	TotalSize   int64      `json:"total_size" yaml:"total_size"`
	TotalSizeMB float64    `json:"total_size_mb" yaml:"total_size_mb"`
	Files       []FileInfo `json:"files" yaml:"files"`
}

// Collect lists the .torrent files directly inside dir, newest first. A
// missing directory is reported as empty.
func Collect(fs afero.Fs, dir string) (*Stats, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Stats{Files: []FileInfo{}}, nil
		}
		return nil, err
	}

	s := &Stats{Files: make([]FileInfo, 0, len(infos))}
	for _, info := range infos {
		if !info.Mode().IsRegular() || !strings.HasSuffix(strings.ToLower(info.Name()), ".torrent") {
			continue
		}
		s.Files = append(s.Files, FileInfo{
			Name:     info.Name(),
			Size:     info.Size(),
			SizeMB:   toMB(info.Size()),
			Modified: info.ModTime(),
		})
		s.TotalSize += info.Size()
	}

	sort.SliceStable(s.Files, func(i, j int) bool {
		return s.Files[i].Modified.After(s.Files[j].Modified)
	})
	s.TotalFiles = len(s.Files)
	s.TotalSizeMB = toMB(s.TotalSize)
	return s, nil
}

func toMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}
