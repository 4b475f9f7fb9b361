// Package blob stores uploaded receipts on local disk.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
	ErrTooLarge   = errors.New("blob too large")
)

// Object is a stored receipt.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// DiskStore keeps blobs as files named <uuid><ext> under dir.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates dir if needed. baseURL is the public prefix files are
// served under, e.g. http://localhost:8081/files.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// URL returns the public URL for key.
func (s *DiskStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// Save copies at most maxBytes from r into a new blob. The key keeps the
// extension of fileName.
func (s *DiskStore) Save(ctx context.Context, fileName string, r io.Reader, maxBytes int64) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(fileName))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("write blob: %w", err)
	}
	if n > maxBytes {
		return Object{}, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return Object{}, fmt.Errorf("commit blob: %w", err)
	}
	return Object{Key: key, URL: s.URL(key), Size: n}, nil
}

// Open returns the blob content and its MIME type.
func (s *DiskStore) Open(key string) (io.ReadCloser, string, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("open blob: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, ct, nil
}

func (s *DiskStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// path only accepts keys generated by Save.
func (s *DiskStore) path(key string) (string, error) {
	stem := strings.TrimSuffix(key, filepath.Ext(key))
	if _, err := uuid.Parse(stem); err != nil || strings.ContainsAny(key, `/\`) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key), nil
}
