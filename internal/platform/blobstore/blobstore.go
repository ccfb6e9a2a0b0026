// Package blobstore provides artifact storage for generated and contributed
// clinical documents. Blobs are addressed by the deterministic relative path
// produced by BuildPath, and viewing access is granted through short-lived
// signed URLs.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrBlobNotFound  = errors.New("blob not found")
	ErrBlobExists    = errors.New("blob already exists")
	ErrEmptyPath     = errors.New("blob path is required")
	ErrEscapingPath  = errors.New("blob path escapes the storage root")
	ErrEmptyContent  = errors.New("blob content is empty")
)

// StorageError wraps any failure from a storage backend so callers can treat
// blob-layer faults as one error class while still reaching the cause with
// errors.Is/As.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

// Store is the contract for blob storage backends.
//
// Put with overwrite=true is an upsert: a same-day regeneration of a document
// replaces the previous blob at the same address. Without overwrite an
// existing blob makes Put fail with ErrBlobExists.
type Store interface {
	Put(ctx context.Context, path, contentType string, data []byte, overwrite bool) error
	Get(ctx context.Context, path string) ([]byte, string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	contentType string
	data        []byte
}

// MemoryStore is a thread-safe, in-memory Store for testing and development.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]storedBlob
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]storedBlob)}
}

func (s *MemoryStore) Put(_ context.Context, path, contentType string, data []byte, overwrite bool) error {
	if path == "" {
		return storageErr("put", path, ErrEmptyPath)
	}
	if len(data) == 0 {
		return storageErr("put", path, ErrEmptyContent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[path]; ok && !overwrite {
		return storageErr("put", path, ErrBlobExists)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[path] = storedBlob{contentType: contentType, data: buf}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, path string) ([]byte, string, error) {
	s.mu.RLock()
	blob, ok := s.blobs[path]
	s.mu.RUnlock()

	if !ok {
		return nil, "", storageErr("get", path, ErrBlobNotFound)
	}

	buf := make([]byte, len(blob.data))
	copy(buf, blob.data)
	return buf, blob.contentType, nil
}

func (s *MemoryStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	_, ok := s.blobs[path]
	s.mu.RUnlock()
	return ok, nil
}

// ---------------------------------------------------------------------------
// Disk implementation
// ---------------------------------------------------------------------------

// DiskStore persists blobs under a root directory, one file per blob. The
// content type is recorded in a sidecar file next to the blob.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a DiskStore.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, storageErr("init", root, err)
	}
	return &DiskStore{root: root}, nil
}

// resolve maps a relative blob path to an absolute file path, rejecting
// anything that would escape the storage root.
func (s *DiskStore) resolve(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrEscapingPath
	}
	return full, nil
}

func (s *DiskStore) Put(_ context.Context, path, contentType string, data []byte, overwrite bool) error {
	full, err := s.resolve(path)
	if err != nil {
		return storageErr("put", path, err)
	}
	if len(data) == 0 {
		return storageErr("put", path, ErrEmptyContent)
	}

	if !overwrite {
		if _, err := os.Stat(full); err == nil {
			return storageErr("put", path, ErrBlobExists)
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return storageErr("put", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return storageErr("put", path, err)
	}
	if err := os.WriteFile(full+".ctype", []byte(contentType), 0o644); err != nil {
		return storageErr("put", path, err)
	}
	return nil
}

func (s *DiskStore) Get(_ context.Context, path string) ([]byte, string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, "", storageErr("get", path, err)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", storageErr("get", path, ErrBlobNotFound)
		}
		return nil, "", storageErr("get", path, err)
	}

	contentType := "application/octet-stream"
	if ct, err := os.ReadFile(full + ".ctype"); err == nil {
		contentType = string(ct)
	}
	return data, contentType, nil
}

func (s *DiskStore) Exists(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, storageErr("stat", path, err)
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, storageErr("stat", path, err)
	}
	return true, nil
}
