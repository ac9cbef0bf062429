package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager hands out isolated scratch directories for pipeline runs.
type Manager struct {
	logger zerolog.Logger
	root   string
	retain bool
}

// NewManager creates a manager rooted at root; an empty root falls back
// to the system temp directory. When retain is set, released workspaces
// stay on disk for inspection.
func NewManager(logger zerolog.Logger, root string, retain bool) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "workspace").Logger(),
		root:   root,
		retain: retain,
	}
}

// Acquire creates a fresh scratch directory private to one run.
func (m *Manager) Acquire() (*Workspace, error) {
	root := m.root
	if root == "" {
		root = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(root, "finishing_"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	m.logger.Debug().Str("dir", dir).Msg("workspace acquired")
	return &Workspace{dir: dir, id: id, retain: m.retain, logger: m.logger}, nil
}

// Workspace is one run's scratch directory. Every intermediate artifact
// lives under it; only exported results survive Release.
type Workspace struct {
	dir    string
	id     string
	retain bool
	logger zerolog.Logger
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// ID returns the unique run identifier embedded in the directory name.
func (w *Workspace) ID() string {
	return w.id
}

// InputPath is where the fetched source clip lands.
func (w *Workspace) InputPath() string {
	return filepath.Join(w.dir, "input.mp4")
}

// VisualPath is the overlaid visual-only encode for the given extension.
func (w *Workspace) VisualPath(ext string) string {
	return filepath.Join(w.dir, "visual"+ext)
}

// MuxedPath is the audio-attached cut before export.
func (w *Workspace) MuxedPath(ext string) string {
	return filepath.Join(w.dir, "muxed"+ext)
}

// Release removes the workspace and everything still in it, or keeps it
// when retention is on. Safe to call more than once.
func (w *Workspace) Release() {
	if w.retain {
		w.logger.Info().Str("dir", w.dir).Msg("retaining workspace for inspection")
		return
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.Warn().Err(err).Str("dir", w.dir).Msg("failed to remove workspace")
		return
	}
	w.logger.Debug().Str("dir", w.dir).Msg("workspace released")
}
