package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vampirenirmal/chapterforge/internal/acceptance"
	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/continuity"
	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/prompt"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

var errStale = errors.New("chapter content changed")

// GenerateOutline asks the outliner for the chapter stubs. Continuous stories get a one-chapter
// opening. Criteria and character selections already set on existing stubs are kept by position.
// Nothing is committed when the response cannot be used.
func (s *Session) GenerateOutline(ctx context.Context) ([]story.Chapter, error) {
	const step = "generate outline"
	if err := s.begin(); err != nil {
		return nil, stepError(step, 0, err)
	}
	defer s.end()

	s.mu.Lock()
	for _, ch := range s.state.Outline {
		if ch.Status == story.StatusCompleted || ch.Content != "" {
			s.mu.Unlock()
			return nil, stepError(step, 0, ErrOutlineLocked)
		}
	}
	count := s.state.ChapterCount
	if s.state.Mode == story.ModeContinuous {
		count = 1
	}
	count = min(count, s.svc.limits.MaxChapters)
	userPrompt := prompt.Outline(s.state, count)
	s.mu.Unlock()

	start := time.Now()
	items, err := s.svc.gateway.GenerateOutline(ctx, s.svc.personas.System(agent.RoleOutliner), userPrompt, count)
	if err != nil {
		s.logger.Error("outline generation failed", "kind", agent.KindOf(err), "error", err)
		return nil, stepError(step, 0, fmt.Errorf("%w: %w", ErrInvalidOutline, err))
	}

	var outline []story.Chapter
	_ = s.update(func(st *story.State) error {
		outline = make([]story.Chapter, len(items))
		for i, item := range items {
			outline[i] = story.Chapter{
				ID:      i + 1,
				Title:   item.Title,
				Summary: item.Summary,
				Status:  story.StatusPending,
			}
			if i < len(st.Outline) {
				outline[i].CharacterIDs = st.Outline[i].CharacterIDs
				outline[i].AcceptanceCriteria = foreshadow.StripSection(st.Outline[i].AcceptanceCriteria)
			}
		}
		st.Outline = outline
		st.Outcomes = nil
		st.Step = story.StepOutline
		foreshadow.Recompute(st)
		outline = st.Clone().Outline
		return nil
	})

	s.logger.Info("outline generated",
		"chapters", len(outline),
		"requested", count,
		"duration_ms", time.Since(start).Milliseconds())
	s.publish(Event{Type: EventOutline, Message: fmt.Sprintf("%d chapters", len(outline))})
	return outline, nil
}

// PreviewPrompt returns the prompt the next generation of chapter id would send. Detailed
// summaries it needs are generated and kept.
func (s *Session) PreviewPrompt(ctx context.Context, id int) (string, error) {
	const step = "preview prompt"
	if err := s.begin(); err != nil {
		return "", stepError(step, id, err)
	}
	defer s.end()

	snap := s.Snapshot()
	idx := snap.ChapterIndex(id)
	if idx < 0 {
		return "", stepError(step, id, ErrChapterNotFound)
	}

	acc, err := s.svc.summarizer.Accumulate(ctx, snap.Genre, continuity.Preceding(snap.Outline, idx))
	s.mergeSummaries(acc.Chapters)
	if err != nil {
		return "", stepError("summarize previous chapters", id, err)
	}
	return prompt.BuildChapter(prompt.InputFor(snap, idx, acc.Summary, s.continuation(snap, idx))), nil
}

// GenerateNext writes the first chapter that is pending or failed. A non-blank customPrompt is
// sent instead of the built prompt.
func (s *Session) GenerateNext(ctx context.Context, customPrompt string) (story.Chapter, error) {
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError("generate next", 0, err)
	}
	defer s.end()

	idx := s.nextIndex()
	if idx < 0 {
		return story.Chapter{}, stepError("generate next", 0, ErrNoPendingChapter)
	}
	return s.generate(ctx, genRequest{idx: idx, kind: story.Fresh, customPrompt: customPrompt})
}

// WriteAll writes every remaining chapter in order and stops at the first failure. Failed
// validations are recorded and do not stop the run. It returns how many chapters were written.
func (s *Session) WriteAll(ctx context.Context) (int, error) {
	if err := s.begin(); err != nil {
		return 0, stepError("write all", 0, err)
	}
	defer s.end()

	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, stepError("write all", 0, err)
		}
		idx := s.nextIndex()
		if idx < 0 {
			break
		}
		if _, err := s.generate(ctx, genRequest{idx: idx, kind: story.Fresh}); err != nil {
			return written, err
		}
		written++
	}

	s.logger.Info("batch finished", "written", written)
	return written, nil
}

// Regenerate rewrites a completed chapter, showing the model its previous version and feedback.
func (s *Session) Regenerate(ctx context.Context, id int, feedback string) (story.Chapter, error) {
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError("regenerate", id, err)
	}
	defer s.end()
	return s.regenerate(ctx, id, feedback)
}

func (s *Session) regenerate(ctx context.Context, id int, feedback string) (story.Chapter, error) {
	s.mu.Lock()
	idx := s.state.ChapterIndex(id)
	s.mu.Unlock()
	if idx < 0 {
		return story.Chapter{}, stepError("regenerate", id, ErrChapterNotFound)
	}
	return s.generate(ctx, genRequest{idx: idx, kind: story.Regeneration, feedback: feedback})
}

// AcceptValidation keeps a chapter whose validation failed as it is.
func (s *Session) AcceptValidation(id int) error {
	err := s.update(func(st *story.State) error {
		ch, err := chapterRef(st, id)
		if err != nil {
			return err
		}
		if ch.Status != story.StatusCompleted || !ch.AwaitingDecision() {
			return ErrNoDecision
		}
		ch.ValidationResult.Accepted = true
		return nil
	})
	if err != nil {
		return stepError("accept validation", id, err)
	}

	s.logger.Info("failed validation accepted", "chapter", id)
	s.publish(Event{Type: EventValidation, Chapter: id, Status: story.StatusCompleted, Message: "accepted"})
	return nil
}

// RetryValidation regenerates a chapter with its validation feedback as the revision request.
func (s *Session) RetryValidation(ctx context.Context, id int) (story.Chapter, error) {
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError("retry validation", id, err)
	}
	defer s.end()

	s.mu.Lock()
	ch, err := chapterRef(s.state, id)
	var feedback string
	if err == nil {
		if ch.Status != story.StatusCompleted || !ch.AwaitingDecision() {
			err = ErrNoDecision
		} else {
			feedback = ch.ValidationResult.Feedback
		}
	}
	s.mu.Unlock()
	if err != nil {
		return story.Chapter{}, stepError("retry validation", id, err)
	}

	return s.regenerate(ctx, id, feedback)
}

func (s *Session) nextIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.state.Outline {
		if ch.Status == story.StatusPending || ch.Status == story.StatusError {
			return i
		}
	}
	return -1
}

func (s *Session) continuation(st *story.State, idx int) string {
	if idx == 0 || idx >= len(st.Outline) {
		return ""
	}
	prev := st.Outline[idx-1]
	if prev.Status != story.StatusCompleted {
		return ""
	}
	return prompt.Tail(prev.Content, s.svc.limits.ContinuationChars)
}

type genRequest struct {
	idx          int
	kind         story.TransitionKind
	customPrompt string
	feedback     string
}

// generate runs one chapter through content generation, detailed summary, validation and,
// in continuous mode, outcome suggestions. The caller holds the gate.
func (s *Session) generate(ctx context.Context, req genRequest) (story.Chapter, error) {
	// the status flip is visible before the model is called
	s.mu.Lock()
	if req.idx < 0 || req.idx >= len(s.state.Outline) {
		s.mu.Unlock()
		return story.Chapter{}, stepError("generate content", 0, ErrChapterNotFound)
	}
	ch := &s.state.Outline[req.idx]
	id := ch.ID
	if err := ch.Transition(story.StatusGenerating, req.kind); err != nil {
		s.mu.Unlock()
		return story.Chapter{}, stepError("generate content", id, err)
	}
	ch.LastError = ""
	previous := ch.Content
	// a failed rewrite must not cost the chapter its current prose
	keep := req.kind == story.Regeneration && strings.TrimSpace(previous) != ""
	s.state.UpdatedAt = s.svc.now()
	snap := s.state.Clone()
	s.mu.Unlock()

	s.autosave.Schedule()
	s.publish(Event{Type: EventStatus, Chapter: id, Status: story.StatusGenerating})

	logger := s.logger.With("chapter", id)
	start := time.Now()

	acc, err := s.svc.summarizer.Accumulate(ctx, snap.Genre, continuity.Preceding(snap.Outline, req.idx))
	s.mergeSummaries(acc.Chapters)
	if err != nil {
		return s.fail(id, "summarize previous chapters", err, keep)
	}

	userPrompt := req.customPrompt
	if strings.TrimSpace(userPrompt) == "" {
		in := prompt.InputFor(snap, req.idx, acc.Summary, s.continuation(snap, req.idx))
		if req.kind == story.Regeneration {
			userPrompt = prompt.BuildRegeneration(in, previous, req.feedback)
		} else {
			userPrompt = prompt.BuildChapter(in)
		}
	}

	content, err := s.svc.gateway.GenerateText(ctx, s.svc.personas.Writer(snap.SystemPrompt), userPrompt)
	if err != nil {
		return s.fail(id, "generate content", err, keep)
	}

	var done story.Chapter
	err = s.update(func(st *story.State) error {
		c, err := chapterRef(st, id)
		if err != nil {
			return err
		}
		if err := c.Transition(story.StatusCompleted, req.kind); err != nil {
			return err
		}
		if strings.TrimSpace(previous) != "" {
			c.Revisions = append(c.Revisions, story.Revision{
				Content:   previous,
				Feedback:  req.feedback,
				Timestamp: s.svc.now(),
			})
		}
		c.Content = content
		c.ValidationResult = nil
		continuity.Invalidate(c)
		advanceStep(st)
		done = c.Clone()
		return nil
	})
	if err != nil {
		return story.Chapter{}, stepError("generate content", id, err)
	}

	logger.Info("chapter generated",
		"regeneration", req.kind == story.Regeneration,
		"content_length", len(content),
		"duration_ms", time.Since(start).Milliseconds())
	s.publish(Event{Type: EventStatus, Chapter: id, Status: story.StatusCompleted})

	// everything below is best-effort and never fails the chapter
	if summarized, err := s.svc.summarizer.Detailed(ctx, snap.Genre, done); err != nil {
		logger.Warn("detailed summary failed", "error", err)
	} else if s.mergeSummaries([]story.Chapter{summarized}) > 0 {
		done.DetailedSummary = summarized.DetailedSummary
		done.SummaryDigest = summarized.SummaryDigest
		s.publish(Event{Type: EventSummary, Chapter: id})
	}

	if done.HasCriteria() {
		if result, err := s.validate(ctx, snap.Genre, done, acc.Summary); err != nil {
			logger.Warn("validation skipped", "error", err)
		} else {
			done.ValidationResult = result
		}
	}

	if snap.Mode == story.ModeContinuous && req.idx == len(snap.Outline)-1 {
		if _, err := s.refreshOutcomes(ctx); err != nil {
			logger.Warn("outcome suggestions unavailable", "error", err)
		}
	}

	return done, nil
}

// validate checks the chapter and stores the verdict if the content is still the one checked.
func (s *Session) validate(ctx context.Context, genre string, ch story.Chapter, previousSummary string) (*story.ValidationResult, error) {
	verdict, err := s.svc.validator.Check(ctx, acceptance.Request{
		Genre:           genre,
		Title:           ch.Title,
		Summary:         ch.Summary,
		Criteria:        ch.AcceptanceCriteria,
		Content:         ch.Content,
		PreviousSummary: previousSummary,
	})
	if err != nil {
		return nil, err
	}

	result := s.svc.validator.Result(verdict)
	err = s.update(func(st *story.State) error {
		c, err := chapterRef(st, ch.ID)
		if err != nil {
			return err
		}
		if c.Content != ch.Content {
			return errStale
		}
		c.ValidationResult = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	e := Event{Type: EventValidation, Chapter: ch.ID, Status: story.StatusCompleted, Message: "passed"}
	if !verdict.Passed {
		e.Message = verdict.Feedback
		s.logger.Info("chapter failed validation", "chapter", ch.ID, "feedback", verdict.Feedback)
	}
	s.publish(e)

	r := *result
	return &r, nil
}

// fail records the error on the chapter and builds the error returned to the caller. The chapter
// moves to error, or back to completed with its content untouched when keep is set.
func (s *Session) fail(id int, step string, cause error, keep bool) (story.Chapter, error) {
	status := story.StatusError
	if keep {
		status = story.StatusCompleted
	}
	err := s.update(func(st *story.State) error {
		c, err := chapterRef(st, id)
		if err != nil {
			return err
		}
		c.LastError = fmt.Sprintf("%s: %v", step, cause)
		return c.Transition(status, story.Fresh)
	})
	if err != nil {
		s.logger.Warn("could not record chapter failure", "chapter", id, "error", err)
	}

	s.logger.Error("chapter generation failed",
		"chapter", id,
		"step", step,
		"kept_content", keep,
		"kind", agent.KindOf(cause),
		"error", cause)
	s.publish(Event{Type: EventStatus, Chapter: id, Status: status, Message: cause.Error()})
	return story.Chapter{}, stepError(step, id, cause)
}

// advanceStep moves the workflow step forward after outline changes or completions.
func advanceStep(st *story.State) {
	switch {
	case len(st.Outline) == 0:
		st.Step = story.StepSetup
	case st.Mode == story.ModeFixed && st.AllCompleted():
		st.Step = story.StepComplete
	case hasWritten(st):
		st.Step = story.StepWriting
	default:
		st.Step = story.StepOutline
	}
}

func hasWritten(st *story.State) bool {
	for _, ch := range st.Outline {
		if ch.Status != story.StatusPending {
			return true
		}
	}
	return false
}
