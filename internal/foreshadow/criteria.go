package foreshadow

import (
	"regexp"
	"strings"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

// RevealsHeader opens the generated section of a chapter's acceptance criteria.
const RevealsHeader = "Foreshadowing Reveals:"

// The generated section is always appended last, so everything from the header on is ours.
var sectionPattern = regexp.MustCompile(`(?s)\s*` + regexp.QuoteMeta(RevealsHeader) + `.*$`)

// StripSection removes any previously rendered reveals section, leaving the user's own text.
func StripSection(criteria string) string {
	return strings.TrimRight(sectionPattern.ReplaceAllString(criteria, ""), " \t\r\n")
}

// RenderSection renders the reveals block for the given notes.
func RenderSection(reveals []story.ForeshadowingNote) string {
	var b strings.Builder
	b.WriteString(RevealsHeader)
	for _, n := range reveals {
		b.WriteString("\n- MUST reveal: ")
		b.WriteString(strings.TrimSpace(n.RevealDescription))
	}
	return b.String()
}

// MergeCriteria returns the acceptance criteria for chapter number `number`: the user's text
// first, then a fresh reveals section. When no note targets the chapter the existing text is
// returned untouched.
func MergeCriteria(existing string, notes []story.ForeshadowingNote, number int) string {
	reveals := revealsFor(notes, number)
	if len(reveals) == 0 {
		return existing
	}
	base := StripSection(existing)
	if base == "" {
		return RenderSection(reveals)
	}
	return base + "\n\n" + RenderSection(reveals)
}

// Recompute rewrites the acceptance criteria of every chapter in the outline.
func Recompute(s *story.State) {
	for idx := range s.Outline {
		ch := &s.Outline[idx]
		ch.AcceptanceCriteria = MergeCriteria(ch.AcceptanceCriteria, s.Foreshadowing, idx+1)
	}
}

// StaleReveals lists the chapters whose criteria still carry a reveals section although no note
// targets them any more. Recompute leaves that text in place until the criteria are edited.
func StaleReveals(s *story.State) []int {
	var out []int
	for idx, ch := range s.Outline {
		if len(revealsFor(s.Foreshadowing, idx+1)) == 0 && sectionPattern.MatchString(ch.AcceptanceCriteria) {
			out = append(out, ch.ID)
		}
	}
	return out
}

func revealsFor(notes []story.ForeshadowingNote, number int) []story.ForeshadowingNote {
	var out []story.ForeshadowingNote
	for _, n := range notes {
		if n.TargetChapterID == number {
			out = append(out, n)
		}
	}
	return out
}
