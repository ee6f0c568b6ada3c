// Package storage keeps attachment bytes on local disk, keyed per team.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrBlockedExt    = errors.New("file extension is blocked")
)

// MaxFileSize is the largest attachment kept (25 MB)
const MaxFileSize = 25 * 1024 * 1024

// BlockedExtensions are never stored, whatever the declared content type.
// The list covers what mail gateways commonly quarantine.
var BlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true,
	".pif": true, ".scr": true, ".vbs": true, ".js": true,
	".jar": true, ".ps1": true, ".sh": true, ".bash": true,
	".msi": true, ".dll": true, ".sys": true, ".hta": true,
	".lnk": true, ".wsf": true, ".cpl": true,
}

// FileStorage keeps attachment bytes outside the database. Keys returned
// by Save are relative, slash separated and safe to persist.
type FileStorage interface {
	Save(teamID uint, filename string, content io.Reader) (string, error)
	Get(filePath string) (io.ReadCloser, error)
	Delete(filePath string) error
}

type localStorage struct {
	basePath string
}

// NewLocalStorage stores files below basePath, creating it if needed
func NewLocalStorage(basePath string) (FileStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStorage{basePath: abs}, nil
}

// resolve maps a storage key to an absolute path inside basePath
func (s *localStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.Contains(clean, "..") {
		return "", ErrPathTraversal
	}

	full := filepath.Join(s.basePath, clean)
	if !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return full, nil
}

// ValidateFile rejects executable extensions and files over MaxFileSize
func ValidateFile(filename string, size int64) error {
	if BlockedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return ErrBlockedExt
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// Save streams content into team-<id>/<shard>/<uuid><ext>. The file is
// written under a temporary name and renamed once complete, so a reader
// never sees a partial attachment. Content over MaxFileSize is rejected.
func (s *localStorage) Save(teamID uint, filename string, content io.Reader) (string, error) {
	if err := ValidateFile(filename, 0); err != nil {
		return "", err
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("team-%d/%s/%s", teamID, name[:2], name)

	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, io.LimitReader(content, MaxFileSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if n > MaxFileSize {
		return "", ErrFileTooLarge
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

// Get opens a stored file
func (s *localStorage) Get(filePath string) (io.ReadCloser, error) {
	full, err := s.resolve(filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file. A missing file is not an error. Empty
// shard and team directories are pruned afterwards.
func (s *localStorage) Delete(filePath string) error {
	full, err := s.resolve(filePath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	for dir := filepath.Dir(full); dir != s.basePath; dir = filepath.Dir(dir) {
		// Remove fails on non-empty directories, which ends the walk
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}
