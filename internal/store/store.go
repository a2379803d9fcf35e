// Package store persists whole story documents keyed by id.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

var (
	ErrNotFound   = errors.New("story not found")
	ErrTitleTaken = errors.New("story title already in use")
)

// Summary is the listing view of a stored story.
type Summary struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Genre     string             `json:"genre"`
	Mode      string             `json:"mode"`
	Chapters  int                `json:"chapters"`
	Completed int                `json:"completed"`
	Step      story.WorkflowStep `json:"step"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Store holds StoryState snapshots.
type Store interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (*story.State, error)
	// Save upserts by title: a new story whose title matches a stored one replaces that record
	// and takes over its id. The id the story was stored under is returned.
	Save(ctx context.Context, s *story.State) (string, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open builds the store selected by driver ("sqlite" or "files").
func Open(driver, databasePath, dataDir string) (Store, error) {
	switch driver {
	case "", "sqlite":
		db, err := OpenSQLite(databasePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "files":
		return NewFileStore(dataDir), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func summarize(s *story.State) Summary {
	sum := Summary{
		ID:        s.ID,
		Title:     s.Title,
		Genre:     s.Genre,
		Mode:      string(s.Mode),
		Chapters:  len(s.Outline),
		Step:      s.Step,
		UpdatedAt: s.UpdatedAt,
	}
	if sum.Chapters == 0 {
		sum.Chapters = s.ChapterCount
	}
	for _, ch := range s.Outline {
		if ch.Status == story.StatusCompleted {
			sum.Completed++
		}
	}
	return sum
}
