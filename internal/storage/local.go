package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStore keeps blobs on the local filesystem. Meant for development and
// the sqlite-backed single-binary mode; the key is also the relative path.
type LocalStore struct {
	root          string
	publicBaseURL string
	logger        *zap.Logger
}

func NewLocalStore(root, publicBaseURL string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local store: create root %q: %w", root, err)
	}
	return &LocalStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}, nil
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("local store: mkdir for %q: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("local store: write %q: %w", key, err)
	}
	s.logger.Info("storage.put.ok", zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local store: remove %q: %w", ref, err)
	}
	s.logger.Info("storage.delete.ok", zap.String("key", ref))
	return nil
}

func (s *LocalStore) PublicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return "/blobs/" + key
}
