// Package memory keeps archived pages and library records in process memory
// for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/JakeFAU/quote-crawler/internal/archive"
)

// StoredObject is a blob held by BlobStore.
type StoredObject struct {
	ContentType string
	Body        []byte
	Metadata    map[string]string
}

// BlobStore stores archived pages in memory and returns pseudo URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]StoredObject
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]StoredObject)}
}

// PutObject persists the content and returns a memory:// URI. Writing the
// same path again replaces the earlier object.
func (s *BlobStore) PutObject(_ context.Context, obj archive.Object) (string, error) {
	if obj.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.Path] = StoredObject{
		ContentType: obj.ContentType,
		Body:        body,
		Metadata:    maps.Clone(obj.Metadata),
	}
	return fmt.Sprintf("memory://%s", obj.Path), nil
}

// Get returns a copy of the object stored at path.
func (s *BlobStore) Get(path string) (StoredObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return StoredObject{}, false
	}
	obj.Body = append([]byte(nil), obj.Body...)
	obj.Metadata = maps.Clone(obj.Metadata)
	return obj, true
}

// Len reports how many objects are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
