package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalDocumentStore writes documents to the local filesystem. It stands in
// for the real object store in development and tests.
type LocalDocumentStore struct {
	baseURL   string
	uploadDir string
}

func NewLocalDocumentStore(baseURL, uploadDir string) (*LocalDocumentStore, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalDocumentStore{
		baseURL:   strings.TrimRight(baseURL, "/"),
		uploadDir: uploadDir,
	}, nil
}

func (s *LocalDocumentStore) Store(ctx context.Context, key string, contents []byte) (string, error) {
	path := filepath.Join(s.uploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/documents/%s", s.baseURL, key), nil
}

func (s *LocalDocumentStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.uploadDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
