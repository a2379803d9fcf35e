package story

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a chapter status change is not allowed.
var ErrInvalidTransition = errors.New("invalid chapter transition")

// TransitionKind distinguishes a fresh generation from an explicit user regeneration.
type TransitionKind int

const (
	Fresh TransitionKind = iota
	Regeneration
)

// CanTransition reports whether a chapter may move from one status to another.
//
//	pending    -> generating            (fresh)
//	error      -> generating            (fresh retry of the same chapter)
//	completed  -> generating            (regeneration only)
//	generating -> completed | error
func CanTransition(from, to ChapterStatus, kind TransitionKind) bool {
	switch from {
	case StatusPending, StatusError:
		return to == StatusGenerating && kind == Fresh
	case StatusCompleted:
		return to == StatusGenerating && kind == Regeneration
	case StatusGenerating:
		return to == StatusCompleted || to == StatusError
	}
	return false
}

// Transition applies a status change to the chapter or returns ErrInvalidTransition.
func (c *Chapter) Transition(to ChapterStatus, kind TransitionKind) error {
	if !CanTransition(c.Status, to, kind) {
		return fmt.Errorf("%w: chapter %d %s -> %s", ErrInvalidTransition, c.ID, c.Status, to)
	}
	c.Status = to
	return nil
}

// RecoverInterrupted moves chapters persisted mid-generation to error so they can be retried.
// It returns how many chapters were moved.
func (s *State) RecoverInterrupted() int {
	n := 0
	for i := range s.Outline {
		if s.Outline[i].Status == StatusGenerating {
			s.Outline[i].Status = StatusError
			s.Outline[i].LastError = "generation was interrupted"
			n++
		}
	}
	return n
}
