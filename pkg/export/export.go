// Package export writes the annotated entry list of a run to the data
// directory and optionally mirrors it to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/models"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatHTML = "html"
)

// FilePrefix starts every export file name.
const FilePrefix = "ygg_torrents_"

// Document is the exported form of one run.
type Document struct {
	RunID         string          `json:"run_id" yaml:"run_id"`
	GeneratedAt   time.Time       `json:"generated_at" yaml:"generated_at"`
	Category      int             `json:"category,omitempty" yaml:"category,omitempty"`
	CategoryLabel string          `json:"category_label,omitempty" yaml:"category_label,omitempty"`
	Summary       *models.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Entries       []*models.Entry `json:"entries" yaml:"entries"`
}

// Meta describes the run an export belongs to.
type Meta struct {
	Category      int
	CategoryLabel string
	Summary       *models.Summary
}

// Sink receives a copy of every export.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	String() string
}

// Exporter writes Documents under one directory.
type Exporter struct {
	fs     afero.Fs
	dir    string
	format string
	sinks  []Sink
	now    func() time.Time
	logger logger.Logger
}

// New returns an Exporter writing format files into dir.
func New(fs afero.Fs, dir, format string, log logger.Logger) (*Exporter, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatJSON
	}
	switch format {
	case FormatJSON, FormatYAML, FormatHTML:
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{fs: fs, dir: dir, format: format, now: time.Now, logger: log}, nil
}

// AddSink registers an additional destination.
func (e *Exporter) AddSink(s Sink) { e.sinks = append(e.sinks, s) }

// Format returns the output format.
func (e *Exporter) Format() string { return e.format }

// Export writes entries and returns the path of the new file. Existing
// exports are never overwritten. Sink failures are logged and do not fail
// the export.
func (e *Exporter) Export(ctx context.Context, entries []*models.Entry, meta Meta) (string, error) {
	now := e.now()
	if entries == nil {
		entries = []*models.Entry{}
	}
	doc := &Document{
		RunID:         uuid.NewString(),
		GeneratedAt:   now,
		Category:      meta.Category,
		CategoryLabel: meta.CategoryLabel,
		Summary:       meta.Summary,
		Entries:       entries,
	}

	data, contentType, err := Render(doc, e.format)
	if err != nil {
		return "", err
	}

	if err := e.fs.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path, err := e.write(now, data)
	if err != nil {
		return "", err
	}

	e.logger.InfoWithFields("Export written", map[string]interface{}{
		"path":    path,
		"entries": len(entries),
		"format":  e.format,
		"run_id":  doc.RunID,
	})

	for _, s := range e.sinks {
		if err := s.Put(ctx, filepath.Base(path), data, contentType); err != nil {
			e.logger.WithError(err).WarnWithFields("Export upload failed", map[string]interface{}{
				"sink": s.String(),
			})
		}
	}
	return path, nil
}

func (e *Exporter) write(now time.Time, data []byte) (string, error) {
	base := FilePrefix + now.Format("20060102_150405")
	ext := "." + e.format

	tmp, err := afero.TempFile(e.fs, e.dir, ".~"+base+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary export: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = e.fs.Remove(tmpName)
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = e.fs.Remove(tmpName)
		return "", fmt.Errorf("failed to close export: %w", err)
	}

	path := filepath.Join(e.dir, base+ext)
	for n := 1; ; n++ {
		exists, err := afero.Exists(e.fs, path)
		if err != nil {
			_ = e.fs.Remove(tmpName)
			return "", err
		}
		if !exists {
			break
		}
		path = filepath.Join(e.dir, fmt.Sprintf("%s_%d%s", base, n, ext))
	}

	if err := e.fs.Rename(tmpName, path); err != nil {
		_ = e.fs.Remove(tmpName)
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}
	return path, nil
}

// Render encodes doc in format and returns the bytes with their MIME type.
func Render(doc *Document, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode export: %w", err)
		}
		return append(data, '\n'), "application/json", nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, "", fmt.Errorf("failed to encode export: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/yaml", nil
	case FormatHTML:
		data, err := renderHTML(doc)
		if err != nil {
			return nil, "", err
		}
		return data, "text/html; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

// Load reads a JSON or YAML export back.
func Load(fs afero.Fs, path string) (*Document, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("export file not found: %s", path)
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("cannot load %s: only json and yaml exports can be read back", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode export %s: %w", path, err)
	}
	return &doc, nil
}
