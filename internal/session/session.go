package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/vampirenirmal/chapterforge/internal/continuity"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

// Session owns one story. The gate admits one generation at a time; mu guards state and is
// never held across a model call.
type Session struct {
	id       string
	svc      *services
	gate     *semaphore.Weighted
	mu       sync.Mutex
	state    *story.State
	autosave *autosaver
	logger   *slog.Logger
}

func (s *Session) ID() string { return s.id }

// Snapshot returns a deep copy of the story.
func (s *Session) Snapshot() *story.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Chapter returns a copy of the chapter with the given id.
func (s *Session) Chapter(id int) (story.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chapterLocked(id)
}

func (s *Session) chapterLocked(id int) (story.Chapter, error) {
	i := s.state.ChapterIndex(id)
	if i < 0 {
		return story.Chapter{}, fmt.Errorf("%w: %d", ErrChapterNotFound, id)
	}
	return s.state.Outline[i].Clone(), nil
}

// Busy reports whether a generation is in flight.
func (s *Session) Busy() bool {
	if !s.gate.TryAcquire(1) {
		return true
	}
	s.gate.Release(1)
	return false
}

// Flush writes pending changes now.
func (s *Session) Flush(ctx context.Context) error {
	return s.autosave.Flush(ctx)
}

func (s *Session) begin() error {
	if !s.gate.TryAcquire(1) {
		return ErrGenerationInProgress
	}
	return nil
}

func (s *Session) end() {
	s.gate.Release(1)
}

// update applies fn to the state under the lock and schedules an autosave when it succeeds.
func (s *Session) update(fn func(st *story.State) error) error {
	s.mu.Lock()
	err := fn(s.state)
	if err == nil {
		s.state.UpdatedAt = s.svc.now()
	}
	s.mu.Unlock()

	if err == nil {
		s.autosave.Schedule()
	}
	return err
}

// chapterRef finds a chapter in st by id.
func chapterRef(st *story.State, id int) (*story.Chapter, error) {
	i := st.ChapterIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrChapterNotFound, id)
	}
	return &st.Outline[i], nil
}

// mergeSummaries copies freshly generated detailed summaries into the live outline.
func (s *Session) mergeSummaries(chapters []story.Chapter) int {
	if len(chapters) == 0 {
		return 0
	}
	s.mu.Lock()
	n := continuity.Merge(s.state.Outline, chapters)
	s.mu.Unlock()

	if n > 0 {
		s.autosave.Schedule()
	}
	return n
}

func (s *Session) publish(e Event) {
	e.StoryID = s.id
	e.Timestamp = s.svc.now()
	s.svc.notifier.Publish(e)
}

// persist writes a snapshot to the store. Outcomes are dropped unless configured to persist.
func (s *Session) persist(ctx context.Context) error {
	snap := s.Snapshot()
	if !s.svc.limits.PersistOutcomes {
		snap.Outcomes = nil
	}

	id, err := s.svc.store.Save(ctx, snap)
	if err != nil {
		return fmt.Errorf("saving story %s: %w", snap.ID, err)
	}
	if id != snap.ID {
		s.logger.Warn("store saved story under another id", "stored_id", id)
	}

	s.logger.Debug("story saved", "chapters", len(snap.Outline))
	s.publish(Event{Type: EventSaved})
	return nil
}
