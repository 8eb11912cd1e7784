// Package models manages on-disk Vosk speech models: a small known
// catalog, download-and-extract, and resolution of a configured model
// path or name to a usable directory.
package models

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Model describes one downloadable Vosk model.
type Model struct {
	Name        string
	Language    string
	Size        string
	URL         string
	Description string
}

// Catalog lists the models the assistant knows how to fetch.
var Catalog = []Model{
	{
		Name:        "vosk-model-small-en-us-0.15",
		Language:    "en-US",
		Size:        "40M",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-en-us-0.15.zip",
		Description: "Lightweight English model, fast but less accurate",
	},
	{
		Name:        "vosk-model-en-us-0.22-lgraph",
		Language:    "en-US",
		Size:        "128M",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-en-us-0.22-lgraph.zip",
		Description: "Medium English model, balanced speed and accuracy",
	},
	{
		Name:        "vosk-model-small-ru-0.22",
		Language:    "ru-RU",
		Size:        "45M",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-ru-0.22.zip",
		Description: "Lightweight Russian model",
	},
}

// DefaultModelName is used when nothing is configured.
const DefaultModelName = "vosk-model-small-en-us-0.15"

// Dir returns the directory where models are stored. KIM_MODELS_DIR
// overrides the default of ~/.kim/models.
func Dir() (string, error) {
	if dir := os.Getenv("KIM_MODELS_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".kim", "models"), nil
}

// Find returns the catalog entry for a model name, or nil.
func Find(name string) *Model {
	for _, model := range Catalog {
		if model.Name == name {
			return &model
		}
	}
	return nil
}

// IsDownloaded reports whether a model directory exists locally.
func IsDownloaded(name string) (bool, error) {
	dir, err := Dir()
	if err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Resolve turns a configured model value into a model directory path.
// A value that exists on disk is used as-is; otherwise it is treated as
// a model name under the models directory. An empty value resolves the
// default model.
func Resolve(pathOrName string) (string, error) {
	if pathOrName == "" {
		pathOrName = DefaultModelName
	}

	if info, err := os.Stat(pathOrName); err == nil && info.IsDir() {
		return pathOrName, nil
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(dir, pathOrName)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}

	return "", fmt.Errorf("model %q not found (looked in %s); download it with --download-model", pathOrName, dir)
}

// ListDownloaded lists all model directories present locally.
func ListDownloaded() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "vosk-model-") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Download fetches a catalog model and extracts it into the models
// directory. progress, if non-nil, is called with byte counts.
func Download(name string, progress func(downloaded, total int64)) error {
	model := Find(name)
	if model == nil {
		return fmt.Errorf("unknown model: %s", name)
	}

	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	zipPath := filepath.Join(dir, name+".zip")
	defer os.Remove(zipPath)

	resp, err := http.Get(model.URL)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	total := resp.ContentLength
	var downloaded int64

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("failed to write file: %w", writeErr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("download error: %w", err)
		}
	}

	if err := extractZip(zipPath, dir); err != nil {
		return fmt.Errorf("failed to extract model: %w", err)
	}
	return nil
}

// extractZip unpacks a downloaded model archive into destDir. Entries that
// would escape destDir are rejected.
func extractZip(zipPath, destDir string) error {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	for _, entry := range archive.File {
		target := filepath.Join(destDir, entry.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry escapes destination: %s", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", target, err)
		}

		if err := extractEntry(entry, target); err != nil {
			return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
