package models

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirHonorsEnvOverride(t *testing.T) {
	t.Setenv("KIM_MODELS_DIR", "/srv/kim/models")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/kim/models", dir)
}

func TestFind(t *testing.T) {
	assert.NotNil(t, Find(DefaultModelName))
	assert.Nil(t, Find("vosk-model-does-not-exist"))
}

func TestResolveExplicitPath(t *testing.T) {
	dir := t.TempDir()
	resolved, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)
}

func TestResolveModelName(t *testing.T) {
	modelsDir := t.TempDir()
	t.Setenv("KIM_MODELS_DIR", modelsDir)

	name := "vosk-model-small-en-us-0.15"
	require.NoError(t, os.MkdirAll(filepath.Join(modelsDir, name), 0o755))

	resolved, err := Resolve(name)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(modelsDir, name), resolved)
}

func TestResolveMissingModel(t *testing.T) {
	t.Setenv("KIM_MODELS_DIR", t.TempDir())
	_, err := Resolve("vosk-model-small-en-us-0.15")
	assert.Error(t, err)
}

func TestListDownloaded(t *testing.T) {
	modelsDir := t.TempDir()
	t.Setenv("KIM_MODELS_DIR", modelsDir)

	require.NoError(t, os.MkdirAll(filepath.Join(modelsDir, "vosk-model-small-en-us-0.15"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(modelsDir, "not-a-model"), 0o755))

	names, err := ListDownloaded()
	require.NoError(t, err)
	assert.Equal(t, []string{"vosk-model-small-en-us-0.15"}, names)
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "model.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExtractZip(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"vosk-model-small-en-us-0.15/README":       "model readme",
		"vosk-model-small-en-us-0.15/am/final.mdl": "weights",
	})

	dest := t.TempDir()
	require.NoError(t, extractZip(zipPath, dest))

	data, err := os.ReadFile(filepath.Join(dest, "vosk-model-small-en-us-0.15", "am", "final.mdl"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestExtractZipRejectsEscapingEntry(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"../outside.txt": "nope",
	})

	dest := t.TempDir()
	err := extractZip(zipPath, dest)
	assert.ErrorContains(t, err, "escapes destination")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "outside.txt"))
}

func TestListDownloadedEmptyWhenDirMissing(t *testing.T) {
	t.Setenv("KIM_MODELS_DIR", filepath.Join(t.TempDir(), "nope"))
	names, err := ListDownloaded()
	require.NoError(t, err)
	assert.Empty(t, names)
}
