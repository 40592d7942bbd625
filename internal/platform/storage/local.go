// Package storage keeps uploaded images on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultURLPrefix is the route the stored files are served under.
const DefaultURLPrefix = "/uploads"

// ErrForeignURL is returned by Delete for URLs this store did not produce.
var ErrForeignURL = errors.New("url does not belong to this store")

// LocalStore writes files into one directory and names them with random UUIDs.
type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// URLPrefix returns the URL path files are served under.
func (s *LocalStore) URLPrefix() string {
	return s.urlPrefix
}

// Save writes data to a new file with extension ext (".jpg") and returns its URL path.
func (s *LocalStore) Save(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := uuid.NewString() + ext

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return path.Join(s.urlPrefix, name), nil
}

// Delete removes the file behind url. A file that is already gone is not an error.
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, ok := strings.CutPrefix(url, s.urlPrefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return fmt.Errorf("%w: %q", ErrForeignURL, url)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}
