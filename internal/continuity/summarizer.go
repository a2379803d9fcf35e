// Package continuity turns completed chapters into the running story memory fed to each
// new generation.
package continuity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vampirenirmal/chapterforge/internal/prompt"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

// ErrNoContent is returned when asked to summarize a chapter that has no prose.
var ErrNoContent = errors.New("chapter has no content to summarize")

// Generator is the text half of the LLM gateway.
type Generator interface {
	GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error)
}

type Summarizer struct {
	gen    Generator
	system func() string
	logger *slog.Logger
}

// New creates a summarizer that asks gen for summaries using systemPrompt.
func New(gen Generator, systemPrompt string) *Summarizer {
	return &Summarizer{
		gen:    gen,
		system: func() string { return systemPrompt },
		logger: slog.Default().With("component", "continuity"),
	}
}

// WithSystem resolves the system prompt through fn on every request.
func (s *Summarizer) WithSystem(fn func() string) *Summarizer {
	s.system = fn
	return s
}

// Digest identifies the content a detailed summary was built from.
func Digest(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// Fresh reports whether the chapter's cached detailed summary still matches its content.
func Fresh(ch story.Chapter) bool {
	return strings.TrimSpace(ch.DetailedSummary) != "" && ch.SummaryDigest == Digest(ch.Content)
}

// Invalidate drops the cached detailed summary.
func Invalidate(ch *story.Chapter) {
	ch.DetailedSummary = ""
	ch.SummaryDigest = ""
}

// Detailed summarizes the chapter's full content and returns the chapter with the summary
// and its digest set.
func (s *Summarizer) Detailed(ctx context.Context, genre string, ch story.Chapter) (story.Chapter, error) {
	if strings.TrimSpace(ch.Content) == "" {
		return ch, fmt.Errorf("chapter %d: %w", ch.ID, ErrNoContent)
	}

	start := time.Now()
	summary, err := s.gen.GenerateText(ctx, s.system(), prompt.DetailedSummary(genre, ch))
	if err != nil {
		return ch, fmt.Errorf("summarizing chapter %d: %w", ch.ID, err)
	}

	ch.DetailedSummary = summary
	ch.SummaryDigest = Digest(ch.Content)

	s.logger.Debug("detailed summary generated",
		"chapter", ch.ID,
		"content_length", len(ch.Content),
		"summary_length", len(summary),
		"duration_ms", time.Since(start).Milliseconds())
	return ch, nil
}

// Accumulation is the result of rolling up a run of completed chapters.
type Accumulation struct {
	Summary string
	// Chapters are the inputs in ascending id order, with any newly generated summaries set.
	Chapters []story.Chapter
	// Generated counts the detailed summaries produced by this call.
	Generated int
}

// Accumulate builds the story-so-far text from the given completed chapters, generating a
// detailed summary for each chapter whose cache is missing or stale. Callers merge the
// returned chapters back with Merge. On error the chapters summarized so far are still returned.
func (s *Summarizer) Accumulate(ctx context.Context, genre string, chapters []story.Chapter) (Accumulation, error) {
	var acc Accumulation
	if len(chapters) == 0 {
		return acc, nil
	}

	acc.Chapters = append([]story.Chapter(nil), chapters...)
	sort.SliceStable(acc.Chapters, func(i, j int) bool { return acc.Chapters[i].ID < acc.Chapters[j].ID })

	var b strings.Builder
	for i := range acc.Chapters {
		ch := &acc.Chapters[i]
		if !Fresh(*ch) {
			updated, err := s.Detailed(ctx, genre, *ch)
			if err != nil {
				return acc, err
			}
			*ch = updated
			acc.Generated++
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Chapter %d: %s\n%s", ch.ID, ch.Title, strings.TrimSpace(ch.DetailedSummary))
	}
	acc.Summary = b.String()

	s.logger.Debug("summary accumulated",
		"chapters", len(acc.Chapters),
		"generated", acc.Generated,
		"summary_length", len(acc.Summary))
	return acc, nil
}

// Preceding returns the completed chapters that come before outline index idx.
func Preceding(outline []story.Chapter, idx int) []story.Chapter {
	var out []story.Chapter
	for i := 0; i < idx && i < len(outline); i++ {
		if outline[i].Status == story.StatusCompleted && strings.TrimSpace(outline[i].Content) != "" {
			out = append(out, outline[i])
		}
	}
	return out
}

// Merge copies detailed summaries from updated into outline, matched by id. A summary is only
// taken when it was built from the content the outline chapter still holds.
func Merge(outline []story.Chapter, updated []story.Chapter) int {
	merged := 0
	for _, u := range updated {
		if u.DetailedSummary == "" {
			continue
		}
		for i := range outline {
			ch := &outline[i]
			if ch.ID != u.ID || Digest(ch.Content) != u.SummaryDigest {
				continue
			}
			if ch.DetailedSummary != u.DetailedSummary || ch.SummaryDigest != u.SummaryDigest {
				ch.DetailedSummary = u.DetailedSummary
				ch.SummaryDigest = u.SummaryDigest
				merged++
			}
		}
	}
	return merged
}
