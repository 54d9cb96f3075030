package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type fileHandle struct {
	mu     sync.Mutex
	file   *os.File
	offset int64
}

// FileWriter owns the open sink files of one session. Each sink is
// written sequentially by exactly one stream.
type FileWriter struct {
	mu      sync.RWMutex
	handles map[string]*fileHandle
}

func NewFileWriter() *FileWriter {
	return &FileWriter{
		handles: make(map[string]*fileHandle),
	}
}

// Truncate creates path, or empties it if it already exists, and keeps the
// handle open for Append. Any handle left from an earlier call is closed.
func (fw *FileWriter) Truncate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create sink dir: %w", err)
	}

	_ = fw.CloseFile(path)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("could not open sink: %w", err)
	}

	fw.mu.Lock()
	fw.handles[path] = &fileHandle{file: f}
	fw.mu.Unlock()

	return nil
}

// Append writes data right after the bytes already written to path.
func (fw *FileWriter) Append(path string, data []byte) error {
	fw.mu.RLock()
	h, ok := fw.handles[path]
	fw.mu.RUnlock()
	if !ok {
		return fmt.Errorf("sink %s is not open", path)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.file.WriteAt(data, h.offset)
	h.offset += int64(n)
	return err
}

// Written returns how many bytes have been appended to path.
func (fw *FileWriter) Written(path string) int64 {
	fw.mu.RLock()
	h, ok := fw.handles[path]
	fw.mu.RUnlock()
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

func (fw *FileWriter) CloseAll() {
	fw.mu.RLock()
	// We iterate over keys because CloseFile will be modifying the map
	paths := make([]string, 0, len(fw.handles))
	for path := range fw.handles {
		paths = append(paths, path)
	}
	fw.mu.RUnlock()

	for _, path := range paths {
		_ = fw.CloseFile(path) // Ignore error on global cleanup
	}
}

func (fw *FileWriter) CloseFile(path string) error {
	fw.mu.Lock()
	h, ok := fw.handles[path]
	if !ok {
		fw.mu.Unlock()
		return nil // Already closed
	}
	// Remove from our map so we don't try to use a closed handle later
	delete(fw.handles, path)
	fw.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Sync to disk and close
	_ = h.file.Sync()
	return h.file.Close()
}
