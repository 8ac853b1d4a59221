package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFindsFirstMatchingDir(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "header.tmpl"), []byte("hi"), 0o644))

	l := NewFileSystemLoader()
	data, err := l.Resolve("header.tmpl", []string{dirA, dirB})
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestResolveTriesExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "header.tmpl"), []byte("hi"), 0o644))

	l := NewFileSystemLoader(".tmpl")
	data, err := l.Resolve("header", []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestResolveRejectsTraversal(t *testing.T) {
	l := NewFileSystemLoader()
	_, err := l.Resolve("../../etc/passwd", []string{t.TempDir()})
	require.Error(t, err)
}

func TestResolveNotFound(t *testing.T) {
	l := NewFileSystemLoader()
	_, err := l.Resolve("missing.tmpl", []string{t.TempDir()})
	require.Error(t, err)
}

func TestSearchPathFromEnv(t *testing.T) {
	t.Setenv("TAGTMPL_TEST_PATH", "a"+string(filepath.ListSeparator)+"b")
	assert.Equal(t, []string{"a", "b"}, SearchPathFromEnv("TAGTMPL_TEST_PATH"))
	assert.Nil(t, SearchPathFromEnv("TAGTMPL_TEST_PATH_UNSET"))
}
