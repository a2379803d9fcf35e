package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

type cachedPrompt struct {
	content string
	modTime time.Time
	size    int64
}

// PromptCache caches prompt override files. Each lookup stats the file and rereads it only when
// its modification time or size changed, so edits apply without a restart.
type PromptCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPrompt
}

// NewPromptCache creates a new prompt cache
func NewPromptCache() *PromptCache {
	return &PromptCache{entries: make(map[string]cachedPrompt)}
}

// LoadPrompt loads a prompt from file or cache
func (pc *PromptCache) LoadPrompt(path string) (string, error) {
	content, ok, err := pc.Lookup(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("reading prompt file: %w", fs.ErrNotExist)
	}
	return content, nil
}

// Lookup returns the file content and true, or false when the file does not exist.
func (pc *PromptCache) Lookup(path string) (string, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		pc.mu.Lock()
		delete(pc.entries, path)
		pc.mu.Unlock()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading prompt file: %w", err)
	}

	pc.mu.RLock()
	entry, ok := pc.entries[path]
	pc.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.content, true, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading prompt file: %w", err)
	}

	pc.mu.Lock()
	pc.entries[path] = cachedPrompt{content: string(content), modTime: info.ModTime(), size: info.Size()}
	pc.mu.Unlock()

	return string(content), true, nil
}

// Clear removes all cached prompts
func (pc *PromptCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.entries = make(map[string]cachedPrompt)
}

// Len returns how many prompts are cached.
func (pc *PromptCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	return len(pc.entries)
}
