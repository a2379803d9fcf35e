package story

import (
	"strings"
	"time"
)

// ChapterStatus is the lifecycle state of a single chapter.
type ChapterStatus string

const (
	StatusPending    ChapterStatus = "pending"
	StatusGenerating ChapterStatus = "generating"
	StatusCompleted  ChapterStatus = "completed"
	StatusError      ChapterStatus = "error"
)

// WorkflowStep tracks where the author is in the overall story workflow.
type WorkflowStep string

const (
	StepSetup    WorkflowStep = "setup"
	StepOutline  WorkflowStep = "outline"
	StepWriting  WorkflowStep = "writing"
	StepComplete WorkflowStep = "complete"
)

// Mode selects between a pre-planned outline and open-ended, one-chapter-at-a-time authoring.
type Mode string

const (
	ModeFixed      Mode = "fixed"
	ModeContinuous Mode = "continuous"
)

// State is the full story document owned by a session and persisted as an opaque blob.
type State struct {
	ID            string              `json:"id" yaml:"-"`
	Title         string              `json:"title" yaml:"title" validate:"required,max=200"`
	Genre         string              `json:"genre" yaml:"genre" validate:"required,max=100"`
	ChapterCount  int                 `json:"chapterCount" yaml:"chapters" validate:"min=1,max=200"`
	ReadingLevel  ReadingLevel        `json:"readingLevel" yaml:"reading_level" validate:"required,oneof=elementary middle-grade young-adult adult"`
	Mode          Mode                `json:"mode" yaml:"mode" validate:"required,oneof=fixed continuous"`
	Characters    []Character         `json:"characters" yaml:"characters" validate:"dive"`
	Outline       []Chapter           `json:"outline" yaml:"-"`
	Step          WorkflowStep        `json:"step" yaml:"-"`
	SystemPrompt  string              `json:"systemPrompt,omitempty" yaml:"system_prompt"`
	Foreshadowing []ForeshadowingNote `json:"foreshadowing" yaml:"-"`
	Outcomes      []ChapterOutcome    `json:"outcomes,omitempty" yaml:"-"`
	CreatedAt     time.Time           `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time           `json:"updatedAt" yaml:"-"`
}

// Chapter is one entry of the outline. ID is the 1-based chapter number and never changes.
type Chapter struct {
	ID                 int               `json:"id"`
	Title              string            `json:"title"`
	Summary            string            `json:"summary"`
	Content            string            `json:"content,omitempty"`
	DetailedSummary    string            `json:"detailedSummary,omitempty"`
	SummaryDigest      string            `json:"summaryDigest,omitempty"`
	Status             ChapterStatus     `json:"status"`
	CharacterIDs       []string          `json:"characterIds,omitempty"`
	AcceptanceCriteria string            `json:"acceptanceCriteria,omitempty"`
	ValidationResult   *ValidationResult `json:"validationResult,omitempty"`
	Revisions          []Revision        `json:"revisions,omitempty"`
	LastError          string            `json:"lastError,omitempty"`
}

// ValidationResult is the outcome of checking a chapter against its acceptance criteria.
type ValidationResult struct {
	Passed    bool      `json:"passed"`
	Feedback  string    `json:"feedback"`
	Accepted  bool      `json:"accepted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Revision is a prior version of a chapter's prose, kept append-only for undo.
type Revision struct {
	Content   string    `json:"content"`
	Feedback  string    `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Character is referenced by id from chapters, never embedded.
type Character struct {
	ID         string `json:"id" yaml:"id" validate:"required"`
	Name       string `json:"name" yaml:"name" validate:"required"`
	Attributes string `json:"attributes" yaml:"attributes"`
}

// ForeshadowingNote plans a reveal in a target chapter and hints in the ones before it.
type ForeshadowingNote struct {
	ID                string    `json:"id"`
	TargetChapterID   int       `json:"targetChapterId" validate:"min=1"`
	RevealDescription string    `json:"revealDescription" validate:"required"`
	ForeshadowingHint string    `json:"foreshadowingHint"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ChapterOutcome is one suggested direction for the next chapter in continuous mode.
type ChapterOutcome struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// HasCriteria reports whether the chapter carries non-blank acceptance criteria.
func (c Chapter) HasCriteria() bool {
	return strings.TrimSpace(c.AcceptanceCriteria) != ""
}

// AwaitingDecision reports whether a failed validation still needs an accept/retry decision.
func (c Chapter) AwaitingDecision() bool {
	return c.ValidationResult != nil && !c.ValidationResult.Passed && !c.ValidationResult.Accepted
}

// ChapterIndex returns the outline index of the chapter with the given id, or -1.
func (s *State) ChapterIndex(id int) int {
	for i := range s.Outline {
		if s.Outline[i].ID == id {
			return i
		}
	}
	return -1
}

// Generating returns the chapter currently in flight, if any.
func (s *State) Generating() (*Chapter, bool) {
	for i := range s.Outline {
		if s.Outline[i].Status == StatusGenerating {
			return &s.Outline[i], true
		}
	}
	return nil, false
}

// NextChapterID returns the id a newly appended chapter should receive.
func (s *State) NextChapterID() int {
	max := 0
	for _, ch := range s.Outline {
		if ch.ID > max {
			max = ch.ID
		}
	}
	return max + 1
}

// Character looks up a roster entry by id.
func (s *State) Character(id string) (Character, bool) {
	for _, c := range s.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

// AllCompleted reports whether the outline is non-empty and every chapter is completed.
func (s *State) AllCompleted() bool {
	if len(s.Outline) == 0 {
		return false
	}
	for _, ch := range s.Outline {
		if ch.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand to another goroutine or a store.
func (s *State) Clone() *State {
	out := *s
	out.Characters = append([]Character(nil), s.Characters...)
	out.Foreshadowing = append([]ForeshadowingNote(nil), s.Foreshadowing...)
	out.Outcomes = append([]ChapterOutcome(nil), s.Outcomes...)
	out.Outline = make([]Chapter, len(s.Outline))
	for i, ch := range s.Outline {
		out.Outline[i] = ch.Clone()
	}
	return &out
}

// Clone returns a deep copy of the chapter.
func (c Chapter) Clone() Chapter {
	out := c
	out.CharacterIDs = append([]string(nil), c.CharacterIDs...)
	out.Revisions = append([]Revision(nil), c.Revisions...)
	if c.ValidationResult != nil {
		vr := *c.ValidationResult
		out.ValidationResult = &vr
	}
	return out
}
