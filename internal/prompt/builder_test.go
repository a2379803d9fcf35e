package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

func sampleInput() ChapterInput {
	return ChapterInput{
		Title: "The Last Embers",
		Genre: "Fantasy",
		Characters: []story.Character{
			{ID: "c1", Name: "Ash", Attributes: "reluctant heir, afraid of fire"},
			{ID: "c2", Name: "Wren", Attributes: "hedge witch"},
			{ID: "c3", Name: "Brand"},
		},
		Outline: []story.Chapter{
			{ID: 1, Title: "Sparks", Summary: "Ash flees the burning village.", Status: story.StatusCompleted},
			{ID: 2, Title: "Kindling", Summary: "Ash meets Wren in the marsh.", AcceptanceCriteria: "Include a twist"},
			{ID: 3, Title: "Blaze", Summary: "The witch's secret."},
		},
		ChapterIndex:    1,
		PreviousSummary: "MAJOR EVENTS: the village burned.",
		ReadingLevel:    story.LevelYoungAdult,
		Notes: []story.ForeshadowingNote{
			{ID: "n1", TargetChapterID: 3, RevealDescription: "The witch is the hero's mother", ForeshadowingHint: "Wren hums Ash's childhood lullaby"},
			{ID: "n2", TargetChapterID: 2, RevealDescription: "The marsh is cursed"},
			{ID: "n3", TargetChapterID: 1, RevealDescription: "Already resolved"},
		},
		Continuation: "the last roof fell in behind him.",
	}
}

func TestBuildChapter_Sections(t *testing.T) {
	p := BuildChapter(sampleInput())

	assert.Contains(t, p, "Title: The Last Embers")
	assert.Contains(t, p, "-> Chapter 2: Kindling. Ash meets Wren in the marsh.")
	assert.Contains(t, p, "Chapter 3: Blaze.")
	assert.Contains(t, p, "STORY SO FAR:\nMAJOR EVENTS: the village burned.")
	assert.Contains(t, p, "the last roof fell in behind him.")
	assert.Contains(t, p, ReadingLevelGuidance(story.LevelYoungAdult))
	assert.Contains(t, p, "ACCEPTANCE CRITERIA (MUST MEET):\nInclude a twist")
	assert.Contains(t, p, "must explicitly satisfy every criterion")
	assert.NotContains(t, p, "REVISION REQUEST")
}

func TestBuildChapter_ForeshadowingPartition(t *testing.T) {
	p := BuildChapter(sampleInput())

	assert.Contains(t, p, "- Wren hums Ash's childhood lullaby (pays off in chapter 3)")
	assert.Contains(t, p, "- REVEAL: The marsh is cursed")
	assert.NotContains(t, p, "The witch is the hero's mother")
	assert.NotContains(t, p, "Already resolved")
}

func TestBuildChapter_CharacterSelection(t *testing.T) {
	in := sampleInput()

	all := BuildChapter(in)
	assert.Contains(t, all, "- Brand\n")
	assert.NotContains(t, all, "Focus on these characters")

	in.SelectedCharacterIDs = []string{"c2", "c1", "ghost"}
	focused := BuildChapter(in)
	assert.Contains(t, focused, "- Ash: reluctant heir, afraid of fire")
	assert.Contains(t, focused, "- Wren: hedge witch")
	assert.NotContains(t, focused, "- Brand")
	assert.Contains(t, focused, "Focus on these characters in this chapter: Ash, Wren.")
}

func TestBuildChapter_OmitsEmptySections(t *testing.T) {
	in := sampleInput()
	in.PreviousSummary = "  "
	in.Continuation = ""
	in.Notes = nil
	in.Outline[1].AcceptanceCriteria = " \n"

	p := BuildChapter(in)
	for _, header := range []string{"STORY SO FAR", "IMMEDIATE CONTINUATION", "FORESHADOWING", "ACCEPTANCE CRITERIA"} {
		assert.NotContains(t, p, header)
	}
}

func TestBuildChapter_Deterministic(t *testing.T) {
	assert.Equal(t, BuildChapter(sampleInput()), BuildChapter(sampleInput()))
}

func TestBuildChapter_InvalidIndexPanics(t *testing.T) {
	in := sampleInput()
	in.ChapterIndex = 3
	assert.Panics(t, func() { BuildChapter(in) })
}

func TestBuildRegeneration(t *testing.T) {
	in := sampleInput()
	previous := "Ash walked into the marsh. Nothing funny happened."
	p := BuildRegeneration(in, previous, "add more humor")

	assert.True(t, strings.HasPrefix(p, BuildChapter(in)))
	assert.Contains(t, p, previous)
	assert.Contains(t, p, "add more humor")
	assert.Contains(t, p, "Preserves every established fact")
	assert.Contains(t, p, "Keeps the core plot points from the chapter summary")
}

func TestReadingLevelGuidance(t *testing.T) {
	seen := map[string]bool{}
	for _, lvl := range story.ReadingLevels {
		g := ReadingLevelGuidance(lvl)
		assert.NotEmpty(t, g)
		assert.False(t, seen[g], "guidance for %s duplicates another tier", lvl)
		seen[g] = true
	}
	assert.Equal(t, ReadingLevelGuidance(story.LevelAdult), ReadingLevelGuidance("unknown"))
}

func TestTail(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short text kept", "The end.", 100, "The end."},
		{"cut at word boundary", "alpha beta gamma delta", 12, "gamma delta"},
		{"disabled", "anything", 0, ""},
		{"single long word", "abcdefghij", 4, "ghij"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tail(tt.text, tt.max))
		})
	}
}

func TestOutline_ContinuousMode(t *testing.T) {
	s := story.New("Drift", "Sci-Fi", 1, story.LevelAdult, story.ModeContinuous)
	p := Outline(s, 1)
	assert.Contains(t, p, "open-ended")
	assert.Contains(t, p, "exactly 1 chapter")

	s.Mode = story.ModeFixed
	assert.Contains(t, Outline(s, 5), "exactly 5 chapters")
}

func TestDetailedSummary_UsesFullContent(t *testing.T) {
	long := strings.Repeat("filler words here. ", 2000) + "The dagger was never found."
	p := DetailedSummary("Mystery", story.Chapter{ID: 4, Title: "Fog", Content: long})
	assert.Contains(t, p, "The dagger was never found.")
	assert.Contains(t, p, "UNRESOLVED PLOT THREADS")
}
