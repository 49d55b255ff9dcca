package testutil

import (
	"os"
	"path/filepath"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/fileuri"
)

// TempDir creates a temporary directory
type TempDir struct {
	Path string
}

// NewTempDir creates a temp directory
func NewTempDir() (*TempDir, error) {
	path, err := os.MkdirTemp("", "bifrost-test-*")
	if err != nil {
		return nil, err
	}
	// Resolve symlinks so URIs match what the file system reports.
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return &TempDir{Path: path}, nil
}

// CreateFile creates a file in the temp directory and returns its file URI
func (d *TempDir) CreateFile(name, content string) (string, error) {
	path := filepath.Join(d.Path, name)

	// Create parent directories if needed
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}

	return fileuri.FromPath(path), nil
}

// URI returns the file URI of name inside the temp directory
func (d *TempDir) URI(name string) string {
	return fileuri.FromPath(filepath.Join(d.Path, name))
}

// Cleanup removes the temp directory and all contents
func (d *TempDir) Cleanup() {
	os.RemoveAll(d.Path)
}
