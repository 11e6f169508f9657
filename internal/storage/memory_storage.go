package storage

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage keeps blobs in process memory. It is the default backend.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (ms *MemoryStorage) SaveFile(file io.Reader, info FileInfo) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	filename := blobName(info.Filename)

	ms.mu.Lock()
	ms.blobs[filename] = data
	ms.mu.Unlock()

	return filename, nil
}

func (ms *MemoryStorage) OpenFile(path string) (io.ReadSeekCloser, error) {
	ms.mu.RLock()
	data, ok := ms.blobs[path]
	ms.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("failed to open file: %s not found", path)
	}

	return nopCloser{bytes.NewReader(data)}, nil
}

func (ms *MemoryStorage) DeleteFile(path string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.blobs[path]; !ok {
		return fmt.Errorf("failed to delete file: %s not found", path)
	}
	delete(ms.blobs, path)
	return nil
}

// Len reports how many blobs are held.
func (ms *MemoryStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.blobs)
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
