// Package loader is the external collaborator spec.md §1 keeps out of the
// core's scope: it resolves an <:include> template name plus a search path
// into source bytes. The core only ever calls through the Loader interface
// (spec.md §3: "the core consumes from the loader a resolve(name, path) ->
// bytes operation"); this package supplies one concrete, minimal
// implementation grounded on the teacher's filesystem loader.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader resolves an include target to template source bytes.
type Loader interface {
	Resolve(name string, searchPath []string) ([]byte, error)
}

// FileSystemLoader resolves template names against an ordered list of
// directories, trying each in turn and optionally a fixed extension suffix
// if the bare name isn't found (spec.md §6: "a search path ... used by the
// loader resolve").
type FileSystemLoader struct {
	extensions []string
}

// NewFileSystemLoader builds a FileSystemLoader. extensions, if non-empty,
// are tried in order after the bare name when a direct lookup misses (e.g.
// ".tmpl", ".html").
func NewFileSystemLoader(extensions ...string) *FileSystemLoader {
	return &FileSystemLoader{extensions: extensions}
}

// Resolve implements Loader. Directory traversal outside the search path is
// rejected by cleaning the name and checking for "..".
func (f *FileSystemLoader) Resolve(name string, searchPath []string) ([]byte, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}

	candidates := append([]string{clean}, withExtensions(clean, f.extensions)...)
	var lastErr error
	for _, dir := range searchPath {
		for _, cand := range candidates {
			full := filepath.Join(dir, cand)
			data, err := os.ReadFile(full)
			if err == nil {
				return data, nil
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no search path entries configured")
	}
	return nil, fmt.Errorf("loader: resolve %q: %w", name, lastErr)
}

func withExtensions(name string, exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, len(exts))
	for i, ext := range exts {
		out[i] = name + ext
	}
	return out
}

func sanitizeName(name string) (string, error) {
	clean := filepath.Clean(name)
	clean = strings.TrimPrefix(clean, string(filepath.Separator))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("loader: %q escapes the search path", name)
	}
	return clean, nil
}

// SearchPathFromEnv reads a named environment variable and splits it on the
// platform path-list separator (spec.md §6 "Environment input" — an
// external-collaborator concern, not a core contract).
func SearchPathFromEnv(varName string) []string {
	raw := os.Getenv(varName)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, string(filepath.ListSeparator))
}
