package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAcquireCreatesUniqueDirs(t *testing.T) {
	m := NewManager(zerolog.Nop(), t.TempDir(), false)

	a, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	b, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if a.Dir() == b.Dir() {
		t.Errorf("two acquisitions share a directory: %s", a.Dir())
	}
	for _, ws := range []*Workspace{a, b} {
		fi, err := os.Stat(ws.Dir())
		if err != nil {
			t.Fatalf("workspace dir missing: %v", err)
		}
		if !fi.IsDir() {
			t.Errorf("%s is not a directory", ws.Dir())
		}
		if !strings.HasPrefix(filepath.Base(ws.Dir()), "finishing_") {
			t.Errorf("unexpected dir name %s", filepath.Base(ws.Dir()))
		}
		if ws.ID() == "" {
			t.Error("workspace has no id")
		}
	}
}

func TestWorkspacePathsLiveInsideDir(t *testing.T) {
	m := NewManager(zerolog.Nop(), t.TempDir(), false)
	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer ws.Release()

	for _, p := range []string{ws.InputPath(), ws.VisualPath(".mp4"), ws.MuxedPath(".mp4")} {
		if filepath.Dir(p) != ws.Dir() {
			t.Errorf("%s is outside workspace %s", p, ws.Dir())
		}
	}
	if ws.VisualPath(".webm") != filepath.Join(ws.Dir(), "visual.webm") {
		t.Errorf("unexpected visual path %s", ws.VisualPath(".webm"))
	}
}

func TestReleaseRemovesEverything(t *testing.T) {
	m := NewManager(zerolog.Nop(), t.TempDir(), false)
	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := os.WriteFile(ws.InputPath(), []byte("partial download"), 0o644); err != nil {
		t.Fatalf("failed to write scratch file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(ws.Dir(), "nested"), 0o755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	ws.Release()

	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after release: %v", err)
	}

	// A second release is harmless
	ws.Release()
}

func TestReleaseRetainsWhenConfigured(t *testing.T) {
	m := NewManager(zerolog.Nop(), t.TempDir(), true)
	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := os.WriteFile(ws.InputPath(), []byte("keep me"), 0o644); err != nil {
		t.Fatalf("failed to write scratch file: %v", err)
	}

	ws.Release()

	if _, err := os.Stat(ws.InputPath()); err != nil {
		t.Errorf("retained workspace lost its contents: %v", err)
	}
}

func TestAcquireDefaultsToSystemTemp(t *testing.T) {
	m := NewManager(zerolog.Nop(), "", false)
	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer ws.Release()

	if !strings.HasPrefix(ws.Dir(), os.TempDir()) {
		t.Errorf("workspace %s not under system temp %s", ws.Dir(), os.TempDir())
	}
}
