package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wnt/lbscout/internal/metrics"
)

// FileStore persists every key in one JSON document on disk.
// Each operation rereads the file so separate invocations see each other's writes.
type FileStore struct {
	path  string
	mutex sync.Mutex
}

// NewFileStore creates a store backed by the file at path. The file is created on first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("cache file path is required")
	}
	if stat, err := os.Stat(path); err == nil && stat.IsDir() {
		return nil, fmt.Errorf("cache path %s is a directory", path)
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	entries := make(map[string]string)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache file %s: %w", f.path, err)
	}
	return entries, nil
}

func (f *FileStore) write(entries map[string]string) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache file: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write cache tmp: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	entries, err := f.read()
	if err != nil {
		metrics.RecordCacheOperation("file", "get", "failed")
		return "", false, err
	}
	value, ok := entries[key]
	metrics.RecordCacheOperation("file", "get", "success")
	return value, ok, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	entries, err := f.read()
	if err != nil {
		metrics.RecordCacheOperation("file", "set", "failed")
		return err
	}
	entries[key] = value
	if err := f.write(entries); err != nil {
		metrics.RecordCacheOperation("file", "set", "failed")
		return err
	}
	metrics.RecordCacheOperation("file", "set", "success")
	return nil
}

func (f *FileStore) Remove(_ context.Context, key string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	entries, err := f.read()
	if err != nil {
		metrics.RecordCacheOperation("file", "remove", "failed")
		return err
	}
	if _, ok := entries[key]; !ok {
		metrics.RecordCacheOperation("file", "remove", "success")
		return nil
	}
	delete(entries, key)
	if err := f.write(entries); err != nil {
		metrics.RecordCacheOperation("file", "remove", "failed")
		return err
	}
	metrics.RecordCacheOperation("file", "remove", "success")
	return nil
}

// Path returns the backing file
func (f *FileStore) Path() string {
	return f.path
}
