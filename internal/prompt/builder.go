// Package prompt renders every prompt sent to the model. All functions are pure.
package prompt

import (
	"fmt"
	"strings"

	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

// ChapterInput is everything needed to render a generation prompt for one chapter.
type ChapterInput struct {
	Title        string
	Genre        string
	Characters   []story.Character
	Outline      []story.Chapter
	ChapterIndex int
	// PreviousSummary is the accumulated summary of the completed chapters before this one.
	PreviousSummary string
	// SelectedCharacterIDs narrows the cast; empty means every character is available.
	SelectedCharacterIDs []string
	ReadingLevel         story.ReadingLevel
	Notes                []story.ForeshadowingNote
	// Continuation is the closing passage of the previous chapter.
	Continuation string
}

// InputFor collects the chapter input for outline index idx from a story.
func InputFor(s *story.State, idx int, previousSummary, continuation string) ChapterInput {
	return ChapterInput{
		Title:                s.Title,
		Genre:                s.Genre,
		Characters:           s.Characters,
		Outline:              s.Outline,
		ChapterIndex:         idx,
		PreviousSummary:      previousSummary,
		SelectedCharacterIDs: s.Outline[idx].CharacterIDs,
		ReadingLevel:         s.ReadingLevel,
		Notes:                s.Foreshadowing,
		Continuation:         continuation,
	}
}

// BuildChapter renders the fresh-generation prompt. ChapterIndex must index Outline;
// an out-of-range index panics.
func BuildChapter(in ChapterInput) string {
	ch := in.Outline[in.ChapterIndex]
	number := in.ChapterIndex + 1

	var b strings.Builder

	fmt.Fprintf(&b, "STORY CONTEXT:\nTitle: %s\nGenre: %s\nChapters planned: %d\n\n",
		in.Title, in.Genre, len(in.Outline))

	writeCharacters(&b, in.Characters, in.SelectedCharacterIDs)
	writeOutline(&b, in.Outline, in.ChapterIndex)

	if s := strings.TrimSpace(in.PreviousSummary); s != "" {
		fmt.Fprintf(&b, "STORY SO FAR:\n%s\n\n", s)
	}

	if c := strings.TrimSpace(in.Continuation); c != "" {
		fmt.Fprintf(&b, "IMMEDIATE CONTINUATION:\nThe previous chapter ended with:\n\"\"\"\n%s\n\"\"\"\n", c)
		b.WriteString("Pick up directly from this moment. Do not open with a scene break, a time skip or a recap.\n\n")
	}

	fmt.Fprintf(&b, "READING LEVEL (%s):\n%s\n\n", levelName(in.ReadingLevel), ReadingLevelGuidance(in.ReadingLevel))

	writeForeshadowing(&b, in.Notes, number)

	if criteria := strings.TrimSpace(ch.AcceptanceCriteria); criteria != "" {
		fmt.Fprintf(&b, "ACCEPTANCE CRITERIA (MUST MEET):\n%s\n", criteria)
		b.WriteString("You must explicitly satisfy every criterion listed above. A chapter that misses any of them will be rejected.\n\n")
	}

	fmt.Fprintf(&b, "TASK:\nWrite chapter %d, %q.\nChapter summary: %s\n", number, ch.Title, ch.Summary)
	b.WriteString("Write the complete chapter prose only, with no title line, notes or commentary.")

	return b.String()
}

// BuildRegeneration renders the fresh prompt followed by a revision block carrying the previous
// version and the feedback verbatim. The revision block is the only difference between the two.
func BuildRegeneration(in ChapterInput, previousContent, feedback string) string {
	var b strings.Builder
	b.WriteString(BuildChapter(in))

	b.WriteString("\n\nREVISION REQUEST:\nThis chapter has been written before. Previous version:\n\"\"\"\n")
	b.WriteString(previousContent)
	b.WriteString("\n\"\"\"\n\nFeedback to address:\n\"\"\"\n")
	b.WriteString(feedback)
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString(`Rewrite the chapter so that it:
- Addresses every point in the feedback
- Maintains full continuity with the story so far
- Preserves every established fact, name and event
- Keeps the core plot points from the chapter summary
- Improves specifically where the feedback asks, rather than changing things at random`)

	return b.String()
}

func writeCharacters(b *strings.Builder, all []story.Character, selected []string) {
	cast := all
	focus := false
	if len(selected) > 0 {
		cast = pick(all, selected)
		focus = len(cast) > 0
		if !focus {
			cast = all
		}
	}
	if len(cast) == 0 {
		return
	}

	b.WriteString("CHARACTERS:\n")
	for _, c := range cast {
		if attrs := strings.TrimSpace(c.Attributes); attrs != "" {
			fmt.Fprintf(b, "- %s: %s\n", c.Name, attrs)
		} else {
			fmt.Fprintf(b, "- %s\n", c.Name)
		}
	}
	if focus {
		names := make([]string, len(cast))
		for i, c := range cast {
			names[i] = c.Name
		}
		fmt.Fprintf(b, "Focus on these characters in this chapter: %s.\n", strings.Join(names, ", "))
	}
	b.WriteString("\n")
}

// pick keeps roster order and ignores ids that are not in the roster.
func pick(all []story.Character, ids []string) []story.Character {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []story.Character
	for _, c := range all {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func writeOutline(b *strings.Builder, outline []story.Chapter, current int) {
	b.WriteString("OUTLINE:\n")
	for i, ch := range outline {
		marker := "  "
		if i == current {
			marker = "->"
		}
		fmt.Fprintf(b, "%s Chapter %d: %s. %s\n", marker, i+1, ch.Title, ch.Summary)
	}
	fmt.Fprintf(b, "You are writing the chapter marked ->. Stay consistent with the chapters around it.\n\n")
}

func writeForeshadowing(b *strings.Builder, notes []story.ForeshadowingNote, number int) {
	reveals, hints := foreshadow.Partition(notes, number)
	if len(reveals) == 0 && len(hints) == 0 {
		return
	}

	b.WriteString("FORESHADOWING:\n")
	if len(hints) > 0 {
		b.WriteString("Subtle hints for future reveals (suggestions; plant them lightly and do not reveal them yet):\n")
		for _, n := range hints {
			hint := strings.TrimSpace(n.ForeshadowingHint)
			if hint == "" {
				hint = "lay quiet groundwork for this later reveal: " + n.RevealDescription
			}
			fmt.Fprintf(b, "- %s (pays off in chapter %d)\n", hint, n.TargetChapterID)
		}
	}
	if len(reveals) > 0 {
		b.WriteString("REVEAL in this chapter (mandatory):\n")
		for _, n := range reveals {
			fmt.Fprintf(b, "- REVEAL: %s\n", n.RevealDescription)
		}
	}
	b.WriteString("\n")
}

func levelName(l story.ReadingLevel) string {
	if l.Rank() < 0 {
		return string(story.LevelAdult)
	}
	return string(l)
}
