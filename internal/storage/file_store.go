// Package storage retains the raw uploaded files on disk. Extracted
// text lives in sqlite; the originals are kept only so a document can
// be re-downloaded or re-extracted later.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore lays files out as <base>/<session_id>/<document_id>_<name>.
type FileStore struct {
	basePath string
}

func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Save writes the raw upload under the session's directory, keyed by
// document id so two uploads with the same name cannot collide.
func (f *FileStore) Save(sessionID, documentID uint, filename string, data []byte) (string, error) {
	dir := filepath.Join(f.basePath, fmt.Sprintf("%d", sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	target := filepath.Join(dir, fmt.Sprintf("%d_%s", documentID, safeFilename(filename)))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return target, nil
}

// DeleteDocument removes the retained file for one document, if any.
func (f *FileStore) DeleteDocument(sessionID, documentID uint) error {
	dir := filepath.Join(f.basePath, fmt.Sprintf("%d", sessionID))
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%d_*", documentID)))
	if err != nil {
		return fmt.Errorf("glob document files: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove file: %w", err)
		}
	}
	return nil
}

// DeleteSession removes every retained file for the session.
func (f *FileStore) DeleteSession(sessionID uint) error {
	dir := filepath.Join(f.basePath, fmt.Sprintf("%d", sessionID))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(dir)
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(os.PathSeparator) {
		return "upload"
	}
	return name
}
