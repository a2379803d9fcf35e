package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vampirenirmal/chapterforge/internal/store"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func statusMark(ch story.Chapter) string {
	switch {
	case ch.AwaitingDecision():
		return "?"
	case ch.Status == story.StatusCompleted:
		return "✓"
	case ch.Status == story.StatusGenerating:
		return "…"
	case ch.Status == story.StatusError:
		return "✗"
	default:
		return " "
	}
}

func printStories(w io.Writer, list []store.Summary, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No stories yet. Create one with: chapterforge new")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tGENRE\tMODE\tCHAPTERS\tSTEP\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			shortID(s.ID), s.Title, s.Genre, s.Mode, s.Completed, s.Chapters, s.Step,
			humanize.RelTime(s.UpdatedAt, now, "ago", "from now"))
	}
	tw.Flush()
}

func printStory(w io.Writer, s *story.State) {
	total := 0
	for _, ch := range s.Outline {
		total += wordCount(ch.Content)
	}
	fmt.Fprintf(w, "%s (%s, %s, %s)\n", s.Title, s.Genre, s.ReadingLevel, s.Mode)
	fmt.Fprintf(w, "id: %s  step: %s  words: %s\n", s.ID, s.Step, humanize.Comma(int64(total)))

	if len(s.Characters) > 0 {
		fmt.Fprintln(w, "\nCharacters:")
		for _, c := range s.Characters {
			fmt.Fprintf(w, "  %s  %s: %s\n", c.ID, c.Name, c.Attributes)
		}
	}

	if len(s.Outline) == 0 {
		fmt.Fprintln(w, "\nNo outline yet. Generate one with: chapterforge outline")
		return
	}
	fmt.Fprintln(w, "\nOutline:")
	for _, ch := range s.Outline {
		fmt.Fprintf(w, "  [%s] %2d. %s", statusMark(ch), ch.ID, ch.Title)
		if n := wordCount(ch.Content); n > 0 {
			fmt.Fprintf(w, " (%s words)", humanize.Comma(int64(n)))
		}
		fmt.Fprintln(w)
		if ch.LastError != "" && ch.Status == story.StatusError {
			fmt.Fprintf(w, "        error: %s\n", ch.LastError)
		}
		if ch.AwaitingDecision() {
			fmt.Fprintf(w, "        validation failed: %s\n", ch.ValidationResult.Feedback)
		}
	}
}

func printChapter(w io.Writer, ch story.Chapter, withContent bool) {
	fmt.Fprintf(w, "Chapter %d: %s [%s]\n", ch.ID, ch.Title, ch.Status)
	fmt.Fprintf(w, "%s\n", ch.Summary)
	if ch.AcceptanceCriteria != "" {
		fmt.Fprintf(w, "\nCriteria:\n%s\n", ch.AcceptanceCriteria)
	}
	if v := ch.ValidationResult; v != nil {
		verdict := "passed"
		if !v.Passed {
			verdict = "failed"
			if v.Accepted {
				verdict = "failed (accepted)"
			}
		}
		fmt.Fprintf(w, "\nValidation %s: %s\n", verdict, v.Feedback)
	}
	if n := len(ch.Revisions); n > 0 {
		fmt.Fprintf(w, "\n%d earlier %s\n", n, plural(n, "revision", "revisions"))
	}
	if withContent && ch.Content != "" {
		fmt.Fprintf(w, "\n%s\n", ch.Content)
	} else if ch.Content != "" {
		fmt.Fprintf(w, "\n%s words\n", humanize.Comma(int64(wordCount(ch.Content))))
	}
}

func printNotes(w io.Writer, notes []story.ForeshadowingNote, now time.Time) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No foreshadowing notes.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHAPTER\tREVEAL\tHINT\tADDED")
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", n.ID, n.TargetChapterID, n.RevealDescription,
			n.ForeshadowingHint, humanize.RelTime(n.CreatedAt, now, "ago", "from now"))
	}
	tw.Flush()
}

func printStaleReveals(w io.Writer, chapters []int) {
	for _, id := range chapters {
		fmt.Fprintf(w, "warning: chapter %d criteria still list reveals no note targets; refresh them with: chapterforge criteria <story> %d\n", id, id)
	}
}

func printOutcomes(w io.Writer, outcomes []story.ChapterOutcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No suggestions. Ask for some with: chapterforge outcomes refresh")
		return
	}
	for i, o := range outcomes {
		fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, o.Title, o.Summary)
		if o.Description != "" {
			fmt.Fprintf(w, "   %s\n", o.Description)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
