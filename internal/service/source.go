package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/flynnplatt/common-mapping-client/internal/wmts"
)

var (
	ErrDocumentNotFound = errors.New("capabilities document not found")
	ErrInvalidName      = errors.New("invalid file name")
)

// CapabilitiesService reads WMTS capabilities documents from the data directory.
type CapabilitiesService struct {
	dir string
}

// NewCapabilitiesService creates a service over <dataDir>/capabilities.
func NewCapabilitiesService(dataDir string) *CapabilitiesService {
	return &CapabilitiesService{
		dir: filepath.Join(dataDir, "capabilities"),
	}
}

// Dir returns the path to the capabilities directory.
func (s *CapabilitiesService) Dir() string {
	return s.dir
}

// List returns every .xml document with the layers it offers. Unreadable
// documents are listed with their error.
func (s *CapabilitiesService) List() ([]CapabilitiesFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []CapabilitiesFile{}, nil
		}
		return nil, err
	}

	files := []CapabilitiesFile{}
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".xml" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		f := CapabilitiesFile{
			Name:   entry.Name(),
			Size:   formatSize(info.Size()),
			Layers: []string{},
		}
		caps, err := s.Load(entry.Name())
		if err != nil {
			f.Error = err.Error()
		} else {
			f.Title = caps.ServiceIdentification.Title
			for _, l := range caps.Contents.Layers {
				f.Layers = append(f.Layers, l.Identifier)
			}
		}
		files = append(files, f)
	}
	return files, nil
}

// Load reads and parses the named document.
func (s *CapabilitiesService) Load(name string) (*wmts.Capabilities, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	caps, err := wmts.ParseCapabilities(data)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("Could not load capabilities document")
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return caps, nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
