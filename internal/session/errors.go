package session

import (
	"errors"
	"fmt"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

var (
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrInvalidOutline       = errors.New("failed to generate a valid outline")
	ErrOutlineLocked        = errors.New("outline already has written chapters")
	ErrOutlineFull          = errors.New("outline has reached the chapter limit")
	ErrChapterNotFound      = errors.New("chapter not found")
	ErrCharacterNotFound    = errors.New("character not found")
	ErrInvalidTransition    = story.ErrInvalidTransition
	ErrNoPendingChapter     = errors.New("no chapter left to generate")
	ErrNoDecision           = errors.New("chapter has no failed validation awaiting a decision")
	ErrNoRevision           = errors.New("chapter has no earlier revision")
	ErrNoOutcome            = errors.New("outcome not found")
	ErrNotContinuous        = errors.New("story is not in continuous mode")
	ErrSessionNotFound      = errors.New("session not found")
)

// StepError names the workflow step and chapter an operation failed in.
type StepError struct {
	Step    string
	Chapter int
	Cause   error
}

func (e *StepError) Error() string {
	if e.Chapter > 0 {
		return fmt.Sprintf("chapter %d: %s: %v", e.Chapter, e.Step, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

func stepError(step string, chapter int, cause error) error {
	return &StepError{Step: step, Chapter: chapter, Cause: cause}
}
