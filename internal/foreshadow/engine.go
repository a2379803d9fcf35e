// Package foreshadow manages planned reveals and the hints that lead up to them.
package foreshadow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

// ErrNoteNotFound is returned for an unknown note id.
var ErrNoteNotFound = errors.New("foreshadowing note not found")

// Patch carries the fields of a note to change; nil fields are left alone.
type Patch struct {
	TargetChapterID   *int    `json:"targetChapterId,omitempty"`
	RevealDescription *string `json:"revealDescription,omitempty"`
	ForeshadowingHint *string `json:"foreshadowingHint,omitempty"`
}

// Engine performs note CRUD against a story and keeps the derived criteria text current.
type Engine struct {
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewEngine creates an engine using wall-clock time and random UUIDs.
func NewEngine() *Engine {
	return &Engine{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: slog.Default().With("component", "foreshadow"),
	}
}

// WithClock overrides the time source; used by tests that assert ordering.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Add assigns the note a fresh id and creation time, appends it and recomputes criteria.
func (e *Engine) Add(s *story.State, n story.ForeshadowingNote) (story.ForeshadowingNote, error) {
	n.ID = e.newID()
	n.CreatedAt = e.now()
	n.RevealDescription = strings.TrimSpace(n.RevealDescription)
	if err := story.ValidateNote(n); err != nil {
		return story.ForeshadowingNote{}, err
	}

	s.Foreshadowing = append(s.Foreshadowing, n)
	Recompute(s)

	e.logger.Debug("foreshadowing note added",
		"story_id", s.ID,
		"note_id", n.ID,
		"target_chapter", n.TargetChapterID)
	return n, nil
}

// Update applies a patch to an existing note and recomputes criteria.
func (e *Engine) Update(s *story.State, id string, p Patch) (story.ForeshadowingNote, error) {
	i := e.find(s, id)
	if i < 0 {
		return story.ForeshadowingNote{}, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}

	n := s.Foreshadowing[i]
	if p.TargetChapterID != nil {
		n.TargetChapterID = *p.TargetChapterID
	}
	if p.RevealDescription != nil {
		n.RevealDescription = strings.TrimSpace(*p.RevealDescription)
	}
	if p.ForeshadowingHint != nil {
		n.ForeshadowingHint = *p.ForeshadowingHint
	}
	if err := story.ValidateNote(n); err != nil {
		return story.ForeshadowingNote{}, err
	}

	s.Foreshadowing[i] = n
	Recompute(s)

	e.logger.Debug("foreshadowing note updated",
		"story_id", s.ID,
		"note_id", id,
		"target_chapter", n.TargetChapterID)
	return n, nil
}

// Delete removes a note and recomputes criteria.
func (e *Engine) Delete(s *story.State, id string) error {
	i := e.find(s, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	s.Foreshadowing = append(s.Foreshadowing[:i], s.Foreshadowing[i+1:]...)
	Recompute(s)

	e.logger.Debug("foreshadowing note deleted", "story_id", s.ID, "note_id", id)
	return nil
}

func (e *Engine) find(s *story.State, id string) int {
	for i, n := range s.Foreshadowing {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Partition splits notes for the chapter numbered next: reveals target it exactly, hints target
// a later chapter. Notes aimed at earlier chapters are already resolved and appear in neither.
func Partition(notes []story.ForeshadowingNote, next int) (reveals, hints []story.ForeshadowingNote) {
	for _, n := range notes {
		switch {
		case n.TargetChapterID == next:
			reveals = append(reveals, n)
		case n.TargetChapterID > next:
			hints = append(hints, n)
		}
	}
	return reveals, hints
}

// Sorted returns the notes in creation order for display.
func Sorted(notes []story.ForeshadowingNote) []story.ForeshadowingNote {
	out := append([]story.ForeshadowingNote(nil), notes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
