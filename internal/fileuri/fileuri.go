// Package fileuri converts between file:// document URIs and local paths.
package fileuri

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// ToPath converts a file:// URI to a local path. Bare absolute paths are
// accepted unchanged.
func ToPath(uri string) (string, error) {
	if filepath.IsAbs(uri) {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid document uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported document uri scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("document uri %q has no path", uri)
	}
	return filepath.FromSlash(u.Path), nil
}

// FromPath converts a local path to a file:// URI.
func FromPath(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
