package foreshadow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

func fiveChapterStory() *story.State {
	s := story.New("The Last Embers", "Fantasy", 5, story.LevelAdult, story.ModeFixed)
	for i := 1; i <= 5; i++ {
		s.Outline = append(s.Outline, story.Chapter{ID: i, Status: story.StatusPending})
	}
	return s
}

func TestAdd_RevealLandsOnTargetChapterOnly(t *testing.T) {
	s := fiveChapterStory()
	e := NewEngine()

	n, err := e.Add(s, story.ForeshadowingNote{
		TargetChapterID:   3,
		RevealDescription: "The witch is the hero's mother",
		ForeshadowingHint: "the witch hums the hero's lullaby",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	assert.Contains(t, s.Outline[2].AcceptanceCriteria, "- MUST reveal: The witch is the hero's mother")
	assert.Empty(t, s.Outline[0].AcceptanceCriteria)
	assert.Empty(t, s.Outline[1].AcceptanceCriteria)
	assert.Empty(t, s.Outline[3].AcceptanceCriteria)

	_, hints := Partition(s.Foreshadowing, 1)
	require.Len(t, hints, 1)
	assert.Equal(t, n.ID, hints[0].ID)
}

func TestAdd_RejectsInvalidNote(t *testing.T) {
	s := fiveChapterStory()
	e := NewEngine()

	_, err := e.Add(s, story.ForeshadowingNote{TargetChapterID: 0, RevealDescription: "x"})
	assert.Error(t, err)
	_, err = e.Add(s, story.ForeshadowingNote{TargetChapterID: 2, RevealDescription: "   "})
	assert.Error(t, err)
	assert.Empty(t, s.Foreshadowing)
}

func TestMergeCriteria_Idempotent(t *testing.T) {
	notes := []story.ForeshadowingNote{
		{ID: "a", TargetChapterID: 2, RevealDescription: "the map is forged"},
		{ID: "b", TargetChapterID: 2, RevealDescription: "the captain lied"},
	}

	tests := []struct {
		name     string
		existing string
	}{
		{"empty", ""},
		{"user text", "Include a twist"},
		{"user text trailing newline", "Include a twist\n"},
		{"already rendered", "Include a twist\n\nForeshadowing Reveals:\n- MUST reveal: stale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := MergeCriteria(tt.existing, notes, 2)
			twice := MergeCriteria(once, notes, 2)
			assert.Equal(t, once, twice)
			assert.Equal(t, 1, strings.Count(twice, RevealsHeader))
			assert.NotContains(t, twice, "stale")
		})
	}
}

func TestMergeCriteria_UserTextFirst(t *testing.T) {
	notes := []story.ForeshadowingNote{{ID: "a", TargetChapterID: 1, RevealDescription: "the key was fake"}}
	got := MergeCriteria("Include a twist", notes, 1)
	assert.Equal(t, "Include a twist\n\nForeshadowing Reveals:\n- MUST reveal: the key was fake", got)
}

func TestMergeCriteria_NoNotesLeavesTextUntouched(t *testing.T) {
	existing := "Keep it short\n"
	assert.Equal(t, existing, MergeCriteria(existing, nil, 4))
}

func TestUpdateAndDelete_Recompute(t *testing.T) {
	s := fiveChapterStory()
	s.Outline[2].AcceptanceCriteria = "End on a cliffhanger"
	e := NewEngine()

	n, err := e.Add(s, story.ForeshadowingNote{TargetChapterID: 3, RevealDescription: "the ship is haunted"})
	require.NoError(t, err)

	target := 4
	_, err = e.Update(s, n.ID, Patch{TargetChapterID: &target})
	require.NoError(t, err)
	assert.Contains(t, s.Outline[3].AcceptanceCriteria, "the ship is haunted")
	// chapter 3 no longer has notes, so its previously rendered text is left as is
	assert.Contains(t, s.Outline[2].AcceptanceCriteria, "End on a cliffhanger")

	require.NoError(t, e.Delete(s, n.ID))
	assert.Empty(t, s.Foreshadowing)

	assert.ErrorIs(t, e.Delete(s, "missing"), ErrNoteNotFound)
	_, err = e.Update(s, "missing", Patch{})
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestPartition(t *testing.T) {
	notes := []story.ForeshadowingNote{
		{ID: "past", TargetChapterID: 1},
		{ID: "now", TargetChapterID: 3},
		{ID: "later", TargetChapterID: 7},
	}

	for n := 1; n <= 8; n++ {
		reveals, hints := Partition(notes, n)
		seen := map[string]int{}
		for _, r := range reveals {
			assert.Equal(t, n, r.TargetChapterID)
			seen[r.ID]++
		}
		for _, h := range hints {
			assert.Greater(t, h.TargetChapterID, n)
			seen[h.ID]++
		}
		for _, note := range notes {
			if note.TargetChapterID < n {
				assert.Zero(t, seen[note.ID], "resolved note %s resurfaced for chapter %d", note.ID, n)
			} else {
				assert.Equal(t, 1, seen[note.ID])
			}
		}
	}
}

func TestSorted_ByCreation(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	notes := []story.ForeshadowingNote{
		{ID: "b", CreatedAt: base.Add(time.Minute)},
		{ID: "a", CreatedAt: base},
	}
	got := Sorted(notes)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", notes[0].ID)
}

func TestStaleReveals(t *testing.T) {
	s := fiveChapterStory()
	e := NewEngine()

	n, err := e.Add(s, story.ForeshadowingNote{TargetChapterID: 4, RevealDescription: "the bell was never rung"})
	require.NoError(t, err)
	assert.Empty(t, StaleReveals(s))

	target := 2
	_, err = e.Update(s, n.ID, Patch{TargetChapterID: &target})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, StaleReveals(s))
	assert.Contains(t, s.Outline[3].AcceptanceCriteria, "the bell was never rung")

	s.Outline[3].AcceptanceCriteria = StripSection(s.Outline[3].AcceptanceCriteria)
	assert.Empty(t, StaleReveals(s))

	require.NoError(t, e.Delete(s, n.ID))
	assert.Equal(t, []int{2}, StaleReveals(s))
}
