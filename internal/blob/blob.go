// Package blob provides the binary media storage contract and a local-disk
// implementation that serves uploads under a public base URL.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store uploads opaque media bytes and resolves them back by public URL.
type Store interface {
	Upload(ctx context.Context, r io.Reader, path string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// DiskStore implements Store on the local filesystem, rooted at a base
// directory, with URLs of the form baseURL + "/" + path.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the base directory if needed and returns a store.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *DiskStore) Upload(ctx context.Context, r io.Reader, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("write media file: %w", err)
	}
	return s.baseURL + "/" + path, nil
}

func (s *DiskStore) Download(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolveURL(url)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

func (s *DiskStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolveURL(url)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

func (s *DiskStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("empty blob path")
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *DiskStore) resolveURL(url string) (string, error) {
	path, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return "", fmt.Errorf("URL %q is not served by this store", url)
	}
	return s.resolve(path)
}
