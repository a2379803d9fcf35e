package story

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Validate checks the story setup fields and character roster.
func (s *State) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("story validation failed: %w", err)
	}
	seen := make(map[string]bool, len(s.Characters))
	for _, c := range s.Characters {
		if seen[c.ID] {
			return fmt.Errorf("story validation failed: duplicate character id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// ValidateNote checks a foreshadowing note before it enters the note set.
func ValidateNote(n ForeshadowingNote) error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("foreshadowing note validation failed: %w", err)
	}
	return nil
}

// New creates a story in the setup step with a fresh id and defaults filled in.
func New(title, genre string, chapters int, level ReadingLevel, mode Mode) *State {
	if mode == "" {
		mode = ModeFixed
	}
	if level == "" {
		level = LevelAdult
	}
	now := time.Now().UTC()
	return &State{
		ID:           uuid.NewString(),
		Title:        title,
		Genre:        genre,
		ChapterCount: chapters,
		ReadingLevel: level,
		Mode:         mode,
		Step:         StepSetup,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
