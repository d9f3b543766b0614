package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"custodian/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// FilesystemStore writes artifacts to a directory on local disk. The locator
// is "file://" plus the file name relative to the store root; the root is
// never exposed so locators stay portable across relocations.
type FilesystemStore struct {
	root string
}

// NewFilesystem constructs a filesystem artifact store rooted at dir,
// creating the directory if needed.
func NewFilesystem(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FilesystemStore{root: dir}, nil
}

func (s *FilesystemStore) Write(_ context.Context, data []byte) (string, error) {
	name := uuid.New().String()
	path := filepath.Join(s.root, name)

	// Write to a temp file and rename so a crash never leaves a partial
	// artifact behind a valid locator.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize artifact: %w", err)
	}
	return "file://" + name, nil
}

func (s *FilesystemStore) Read(_ context.Context, locator string) ([]byte, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (s *FilesystemStore) Delete(_ context.Context, locator string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// resolve validates the locator and maps it back under the store root.
func (s *FilesystemStore) resolve(locator string) (string, error) {
	name, ok := strings.CutPrefix(locator, "file://")
	if !ok || name == "" || name != filepath.Base(name) {
		return "", sentinel.ErrInvalidInput
	}
	return filepath.Join(s.root, name), nil
}
