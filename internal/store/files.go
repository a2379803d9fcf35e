package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vampirenirmal/chapterforge/internal/story"
	"github.com/vampirenirmal/chapterforge/internal/storage"
)

const storiesDir = "stories"

// FileStore keeps each story as stories/<id>.json under a storage root.
type FileStore struct {
	mu     sync.Mutex
	fs     storage.Storage
	logger *slog.Logger
}

// NewFileStore roots a file store at dir.
func NewFileStore(dir string) *FileStore {
	return NewFileStoreOn(storage.NewFileSystem(dir))
}

// NewFileStoreOn builds a file store over any blob storage.
func NewFileStoreOn(s storage.Storage) *FileStore {
	return &FileStore{
		fs:     s,
		logger: slog.Default().With("component", "file_store"),
	}
}

func storyPath(id string) string {
	return path.Join(storiesDir, id+".json")
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(all))
	for _, s := range all {
		out = append(out, summarize(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *FileStore) Get(ctx context.Context, id string) (*story.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(ctx, id)
}

func (f *FileStore) get(ctx context.Context, id string) (*story.State, error) {
	data, err := f.fs.Load(ctx, storyPath(id))
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrInvalidPath) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load story %s: %w", id, err)
	}

	var s story.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", id, err)
	}
	return &s, nil
}

func (f *FileStore) Save(ctx context.Context, s *story.State) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.loadAll(ctx)
	if err != nil {
		return "", err
	}

	id := s.ID
	owner := ""
	exists := false
	for _, other := range all {
		if other.ID == s.ID {
			exists = true
		}
		if other.Title == s.Title {
			owner = other.ID
		}
	}
	switch {
	case exists && owner != "" && owner != s.ID:
		return "", fmt.Errorf("%w: %q", ErrTitleTaken, s.Title)
	case !exists && owner != "":
		id = owner
	}

	doc := s.Clone()
	doc.ID = id
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode story: %w", err)
	}
	if err := f.fs.Save(ctx, storyPath(id), data); err != nil {
		return "", fmt.Errorf("save story %s: %w", id, err)
	}

	f.logger.Debug("story saved", "story_id", id)
	return id, nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.fs.Exists(ctx, storyPath(id)) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := f.fs.Delete(ctx, storyPath(id)); err != nil {
		return fmt.Errorf("delete story %s: %w", id, err)
	}
	return nil
}

func (f *FileStore) loadAll(ctx context.Context) ([]*story.State, error) {
	names, err := f.fs.List(ctx, path.Join(storiesDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	out := make([]*story.State, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(path.Base(name), ".json")
		s, err := f.get(ctx, id)
		if err != nil {
			f.logger.Warn("skipping unreadable story", "file", name, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
