package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/continuity"
	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/prompt"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

// Outcomes returns the current next-chapter suggestions.
func (s *Session) Outcomes() []story.ChapterOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]story.ChapterOutcome(nil), s.state.Outcomes...)
}

// RefreshOutcomes replaces the suggestions with a new set from the suggester.
func (s *Session) RefreshOutcomes(ctx context.Context) ([]story.ChapterOutcome, error) {
	if err := s.begin(); err != nil {
		return nil, stepError("suggest outcomes", 0, err)
	}
	defer s.end()
	return s.refreshOutcomes(ctx)
}

func (s *Session) refreshOutcomes(ctx context.Context) ([]story.ChapterOutcome, error) {
	snap := s.Snapshot()
	if snap.Mode != story.ModeContinuous {
		return nil, stepError("suggest outcomes", 0, ErrNotContinuous)
	}

	acc, err := s.svc.summarizer.Accumulate(ctx, snap.Genre, continuity.Preceding(snap.Outline, len(snap.Outline)))
	s.mergeSummaries(acc.Chapters)
	if err != nil {
		return nil, stepError("summarize story", 0, err)
	}

	count := s.svc.limits.OutcomeCount
	list, err := agent.GenerateList[story.ChapterOutcome](ctx, s.svc.gateway,
		s.svc.personas.System(agent.RoleSuggester),
		prompt.Outcomes(snap, acc.Summary, count),
		agent.OutcomesSchema, "outcomes", "suggestions")
	if err != nil {
		return nil, stepError("suggest outcomes", 0, err)
	}

	outcomes := make([]story.ChapterOutcome, 0, count)
	for _, o := range list {
		if len(outcomes) == count {
			break
		}
		o.Title = strings.TrimSpace(o.Title)
		o.Summary = strings.TrimSpace(o.Summary)
		o.Description = strings.TrimSpace(o.Description)
		if o.Title == "" {
			continue
		}
		outcomes = append(outcomes, o)
	}
	if len(outcomes) == 0 {
		return nil, stepError("suggest outcomes", 0, fmt.Errorf("%w: no titled outcomes", agent.ErrInvalidOutput))
	}

	_ = s.update(func(st *story.State) error {
		st.Outcomes = outcomes
		return nil
	})

	s.logger.Debug("outcomes refreshed", "count", len(outcomes))
	s.publish(Event{Type: EventOutcomes, Message: fmt.Sprintf("%d outcomes", len(outcomes))})
	return append([]story.ChapterOutcome(nil), outcomes...), nil
}

// ChooseOutcome appends the chosen suggestion as a new pending chapter and clears the set.
func (s *Session) ChooseOutcome(index int) (story.Chapter, error) {
	const step = "choose outcome"
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError(step, 0, err)
	}
	defer s.end()

	var added story.Chapter
	err := s.update(func(st *story.State) error {
		if st.Mode != story.ModeContinuous {
			return ErrNotContinuous
		}
		if index < 0 || index >= len(st.Outcomes) {
			return fmt.Errorf("%w: %d", ErrNoOutcome, index)
		}
		if len(st.Outline) >= s.svc.limits.MaxChapters {
			return ErrOutlineFull
		}

		o := st.Outcomes[index]
		st.Outline = append(st.Outline, story.Chapter{
			ID:      st.NextChapterID(),
			Title:   o.Title,
			Summary: o.Summary,
			Status:  story.StatusPending,
		})
		st.Outcomes = nil
		st.ChapterCount = len(st.Outline)
		foreshadow.Recompute(st)
		advanceStep(st)
		added = st.Outline[len(st.Outline)-1].Clone()
		return nil
	})
	if err != nil {
		return story.Chapter{}, stepError(step, 0, err)
	}

	s.logger.Info("outcome chosen", "chapter", added.ID, "title", added.Title)
	s.publish(Event{Type: EventOutcomes, Message: "cleared"})
	s.publish(Event{Type: EventOutline, Chapter: added.ID, Status: story.StatusPending})
	return added, nil
}
