package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from ChapterStatus
		to   ChapterStatus
		kind TransitionKind
		want bool
	}{
		{"pending to generating", StatusPending, StatusGenerating, Fresh, true},
		{"error retry", StatusError, StatusGenerating, Fresh, true},
		{"generating to completed", StatusGenerating, StatusCompleted, Fresh, true},
		{"generating to error", StatusGenerating, StatusError, Fresh, true},
		{"regenerate completed", StatusCompleted, StatusGenerating, Regeneration, true},
		{"fresh on completed", StatusCompleted, StatusGenerating, Fresh, false},
		{"regenerate pending", StatusPending, StatusGenerating, Regeneration, false},
		{"pending to completed", StatusPending, StatusCompleted, Fresh, false},
		{"generating twice", StatusGenerating, StatusGenerating, Fresh, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to, tt.kind))
		})
	}
}

func TestChapterTransition_RejectsInvalid(t *testing.T) {
	ch := Chapter{ID: 2, Status: StatusPending}
	err := ch.Transition(StatusCompleted, Fresh)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPending, ch.Status)

	require.NoError(t, ch.Transition(StatusGenerating, Fresh))
	assert.Equal(t, StatusGenerating, ch.Status)
}

func TestStateValidate(t *testing.T) {
	s := New("The Last Embers", "Fantasy", 3, LevelYoungAdult, ModeFixed)
	s.Characters = []Character{{ID: "c1", Name: "Ash"}, {ID: "c2", Name: "Wren"}}
	require.NoError(t, s.Validate())

	s.ReadingLevel = "toddler"
	assert.Error(t, s.Validate())

	s.ReadingLevel = LevelAdult
	s.Characters = append(s.Characters, Character{ID: "c1", Name: "Dup"})
	assert.ErrorContains(t, s.Validate(), "duplicate character id")
}

func TestCloneIsDeep(t *testing.T) {
	s := New("T", "G", 1, LevelAdult, ModeFixed)
	s.Outline = []Chapter{{ID: 1, Status: StatusCompleted, ValidationResult: &ValidationResult{Passed: false}}}

	c := s.Clone()
	c.Outline[0].ValidationResult.Accepted = true
	c.Outline[0].Title = "changed"

	assert.False(t, s.Outline[0].ValidationResult.Accepted)
	assert.Empty(t, s.Outline[0].Title)
}

func TestAwaitingDecision(t *testing.T) {
	ch := Chapter{ValidationResult: &ValidationResult{Passed: false}}
	assert.True(t, ch.AwaitingDecision())
	ch.ValidationResult.Accepted = true
	assert.False(t, ch.AwaitingDecision())
	assert.False(t, Chapter{}.AwaitingDecision())
}

func TestParseReadingLevel(t *testing.T) {
	l, err := ParseReadingLevel("middle-grade")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Rank())

	_, err = ParseReadingLevel("graduate")
	assert.Error(t, err)
}
