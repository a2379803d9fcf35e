package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

// Outline renders the outline request for count chapters.
func Outline(s *story.State, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "STORY SETUP:\nTitle: %s\nGenre: %s\nReading level: %s\n\n", s.Title, s.Genre, levelName(s.ReadingLevel))
	writeCharacters(&b, s.Characters, nil)

	if len(s.Foreshadowing) > 0 {
		b.WriteString("PLANNED REVEALS (the outline must leave room for these):\n")
		for _, n := range s.Foreshadowing {
			fmt.Fprintf(&b, "- Chapter %d: %s\n", n.TargetChapterID, n.RevealDescription)
		}
		b.WriteString("\n")
	}

	if s.Mode == story.ModeContinuous {
		b.WriteString("This is an open-ended story that will be written one chapter at a time.\n")
		fmt.Fprintf(&b, "Plan only the opening: produce exactly %d chapter.\n\n", count)
	} else {
		fmt.Fprintf(&b, "Produce a chapter outline with exactly %d chapters that tells a complete story with a satisfying ending.\n\n", count)
	}

	b.WriteString(`Respond with JSON of the form {"chapters": [{"title": "...", "summary": "..."}]}.
Each summary is two or three sentences describing what happens in that chapter.`)

	return b.String()
}

// DetailedSummary renders the request to summarize one chapter from its complete content.
func DetailedSummary(genre string, ch story.Chapter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Summarize chapter %d, %q, of a %s story for continuity purposes.\n\n", ch.ID, ch.Title, genre)
	b.WriteString("FULL CHAPTER TEXT:\n\"\"\"\n")
	b.WriteString(ch.Content)
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString(`Use these sections:
MAJOR EVENTS
CHARACTER DEVELOPMENTS
UNRESOLVED PLOT THREADS
CURRENT STATE (location, where each character is, what they know, time)
WHAT MUST HAPPEN NEXT

Cover the whole chapter through its final line. Label every cliffhanger and open question explicitly.`)

	return b.String()
}

// ValidationInput carries what the validator needs to judge one chapter.
type ValidationInput struct {
	Genre           string
	Title           string
	Summary         string
	Criteria        string
	Content         string
	PreviousSummary string
}

// Validation renders the acceptance check request.
func Validation(in ValidationInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Check this chapter of a %s story.\n\nCHAPTER: %s\nPLANNED SUMMARY: %s\n\n", in.Genre, in.Title, in.Summary)

	if s := strings.TrimSpace(in.PreviousSummary); s != "" {
		fmt.Fprintf(&b, "STORY SO FAR:\n%s\n\n", s)
	}

	fmt.Fprintf(&b, "ACCEPTANCE CRITERIA:\n%s\n\n", strings.TrimSpace(in.Criteria))
	b.WriteString("CHAPTER TEXT:\n\"\"\"\n")
	b.WriteString(in.Content)
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString(`Decide whether the chapter satisfies every acceptance criterion and stays cohesive with the story so far.
Respond with JSON: {"passed": true|false, "feedback": "..."}.
When it fails, the feedback must list each unmet criterion or continuity problem as a concrete revision instruction.`)

	return b.String()
}

// Outcomes renders the request for count candidate directions after the latest chapter.
func Outcomes(s *story.State, summary string, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "STORY: %s (%s)\n\n", s.Title, s.Genre)
	writeCharacters(&b, s.Characters, nil)

	if sm := strings.TrimSpace(summary); sm != "" {
		fmt.Fprintf(&b, "STORY SO FAR:\n%s\n\n", sm)
	}
	if n := len(s.Outline); n > 0 {
		last := s.Outline[n-1]
		fmt.Fprintf(&b, "LATEST CHAPTER (%d): %s. %s\n\n", n, last.Title, last.Summary)
	}

	fmt.Fprintf(&b, "Suggest %d different directions the next chapter could take.\n", count)
	b.WriteString(`Respond with JSON of the form {"outcomes": [{"title": "...", "summary": "...", "description": "..."}]}.
The title names the chapter, the summary is what happens in two sentences and the description explains how it moves the story forward.`)

	return b.String()
}

// Tail returns at most max bytes from the end of text, starting at a word boundary.
func Tail(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || text == "" {
		return ""
	}
	if len(text) <= max {
		return text
	}

	tail := text[len(text)-max:]
	if i := strings.IndexAny(tail, " \t\r\n"); i >= 0 {
		return strings.TrimSpace(tail[i:])
	}
	// one unbroken word; drop any partial rune at the front
	return strings.TrimLeftFunc(tail, func(r rune) bool { return r == utf8.RuneError })
}
