package session

import (
	"time"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

// EventType categorizes a session event.
type EventType string

const (
	EventOutline    EventType = "outline.updated"
	EventStatus     EventType = "chapter.status"
	EventSummary    EventType = "chapter.summarized"
	EventValidation EventType = "chapter.validated"
	EventRevision   EventType = "chapter.revised"
	EventOutcomes   EventType = "outcomes.updated"
	EventNotes      EventType = "foreshadowing.updated"
	EventCharacters EventType = "characters.updated"
	EventSaved      EventType = "story.saved"
)

// Event describes one change to a story.
type Event struct {
	StoryID   string              `json:"storyId"`
	Type      EventType           `json:"type"`
	Chapter   int                 `json:"chapter,omitempty"`
	Status    story.ChapterStatus `json:"status,omitempty"`
	Message   string              `json:"message,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Notifier receives session events. Publish must not block.
type Notifier interface {
	Publish(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Publish(e Event) { f(e) }

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}
