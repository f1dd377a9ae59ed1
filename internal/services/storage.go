package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
)

// ObjectStore moves a single dataset file between the local staging
// directory and the remote bucket.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) error
	Download(ctx context.Context, key, localPath string) error
	Delete(ctx context.Context, key string) error
}

type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

func (s *GCSStore) Upload(ctx context.Context, localPath, key string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return Upstream("Failed to open local dataset file", err)
	}
	defer src.Close()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return Upstream("Failed to upload file to GCS", err)
	}

	if err := w.Close(); err != nil {
		return Upstream("Failed to close GCS writer", err)
	}
	return nil
}

func (s *GCSStore) Download(ctx context.Context, key, localPath string) error {
	rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return NotFound("Dataset file does not exist")
		}
		return Upstream("Failed to fetch file from GCS", err)
	}
	defer rc.Close()

	return writeLocal(localPath, rc)
}

// Delete treats a missing object as already deleted.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return Upstream("Failed to delete file from GCS", err)
	}
	return nil
}

// MemoryStore keeps objects in process memory. It backs local development
// when no bucket is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(ctx context.Context, localPath, key string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return Upstream("Failed to open local dataset file", err)
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Download(ctx context.Context, key, localPath string) error {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return NotFound("Dataset file does not exist")
	}
	return writeLocal(localPath, bytes.NewReader(data))
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Object returns a stored object; used to inspect the store directly.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

func writeLocal(localPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return Upstream("Failed to create upload directory", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return Upstream("Failed to create local dataset file", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return Upstream("Failed to write local dataset file", err)
	}

	if err := f.Close(); err != nil {
		return Upstream("Failed to write local dataset file", fmt.Errorf("close %s: %w", localPath, err))
	}
	return nil
}
