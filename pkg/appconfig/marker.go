package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/installkit/installkit/pkg/setup"
)

// FileMarker is a completion marker backed by a file whose existence
// denotes the installed state.
type FileMarker struct {
	path string
}

var _ setup.MarkerStore = (*FileMarker)(nil)

// NewFileMarker creates a marker at path.
func NewFileMarker(path string) *FileMarker {
	return &FileMarker{path: path}
}

// Path returns the marker file path.
func (m *FileMarker) Path() string {
	return m.path
}

// Exists reports whether the marker file exists.
func (m *FileMarker) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Write creates the marker with payload, creating its directory if needed.
func (m *FileMarker) Write(payload string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	return os.WriteFile(m.path, []byte(payload), 0644)
}

// MarkerPayload renders the human-readable marker content.
func MarkerPayload(now time.Time) string {
	return fmt.Sprintf("Installation completed: %s\nInstall ID: %s\n",
		now.Format("2006-01-02 15:04:05"), uuid.New().String())
}
