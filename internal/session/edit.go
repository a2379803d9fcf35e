package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vampirenirmal/chapterforge/internal/continuity"
	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

const manualEditFeedback = "manual edit"

var errEmptyContent = errors.New("content must not be empty")

// UndoRevision restores the chapter's previous content.
func (s *Session) UndoRevision(id int) (story.Chapter, error) {
	const step = "undo revision"
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError(step, id, err)
	}
	defer s.end()

	var out story.Chapter
	err := s.update(func(st *story.State) error {
		ch, err := chapterRef(st, id)
		if err != nil {
			return err
		}
		if ch.Status != story.StatusCompleted {
			return fmt.Errorf("%w: chapter is %s", ErrInvalidTransition, ch.Status)
		}
		if len(ch.Revisions) == 0 {
			return ErrNoRevision
		}
		last := ch.Revisions[len(ch.Revisions)-1]
		ch.Revisions = ch.Revisions[:len(ch.Revisions)-1]
		ch.Content = last.Content
		ch.ValidationResult = nil
		continuity.Invalidate(ch)
		out = ch.Clone()
		return nil
	})
	if err != nil {
		return story.Chapter{}, stepError(step, id, err)
	}

	s.logger.Info("revision undone", "chapter", id, "revisions_left", len(out.Revisions))
	s.publish(Event{Type: EventRevision, Chapter: id, Status: out.Status, Message: "undo"})
	return out, nil
}

// EditContent replaces a completed chapter's prose by hand, keeping the old prose as a revision.
func (s *Session) EditContent(id int, content string) (story.Chapter, error) {
	const step = "edit content"
	if strings.TrimSpace(content) == "" {
		return story.Chapter{}, stepError(step, id, errEmptyContent)
	}
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError(step, id, err)
	}
	defer s.end()

	var out story.Chapter
	err := s.update(func(st *story.State) error {
		ch, err := chapterRef(st, id)
		if err != nil {
			return err
		}
		if ch.Status != story.StatusCompleted {
			return fmt.Errorf("%w: chapter is %s", ErrInvalidTransition, ch.Status)
		}
		if ch.Content == content {
			out = ch.Clone()
			return nil
		}
		ch.Revisions = append(ch.Revisions, story.Revision{
			Content:   ch.Content,
			Feedback:  manualEditFeedback,
			Timestamp: s.svc.now(),
		})
		ch.Content = content
		ch.ValidationResult = nil
		continuity.Invalidate(ch)
		out = ch.Clone()
		return nil
	})
	if err != nil {
		return story.Chapter{}, stepError(step, id, err)
	}

	s.publish(Event{Type: EventRevision, Chapter: id, Status: out.Status, Message: manualEditFeedback})
	return out, nil
}

// ChapterStub is a new outline entry added by hand.
type ChapterStub struct {
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	CharacterIDs       []string `json:"characterIds,omitempty"`
	AcceptanceCriteria string   `json:"acceptanceCriteria,omitempty"`
}

// ChapterPatch changes outline fields of a chapter; nil fields are left alone.
type ChapterPatch struct {
	Title              *string   `json:"title,omitempty"`
	Summary            *string   `json:"summary,omitempty"`
	CharacterIDs       *[]string `json:"characterIds,omitempty"`
	AcceptanceCriteria *string   `json:"acceptanceCriteria,omitempty"`
}

// AddChapter appends a pending chapter with the next free id.
func (s *Session) AddChapter(stub ChapterStub) (story.Chapter, error) {
	const step = "add chapter"
	title := strings.TrimSpace(stub.Title)
	if title == "" {
		return story.Chapter{}, stepError(step, 0, errors.New("title is required"))
	}
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError(step, 0, err)
	}
	defer s.end()

	var added story.Chapter
	err := s.update(func(st *story.State) error {
		if len(st.Outline) >= s.svc.limits.MaxChapters {
			return ErrOutlineFull
		}
		if err := knownCharacters(st, stub.CharacterIDs); err != nil {
			return err
		}
		st.Outline = append(st.Outline, story.Chapter{
			ID:                 st.NextChapterID(),
			Title:              title,
			Summary:            strings.TrimSpace(stub.Summary),
			Status:             story.StatusPending,
			CharacterIDs:       append([]string(nil), stub.CharacterIDs...),
			AcceptanceCriteria: stub.AcceptanceCriteria,
		})
		st.ChapterCount = len(st.Outline)
		foreshadow.Recompute(st)
		advanceStep(st)
		added = st.Outline[len(st.Outline)-1].Clone()
		return nil
	})
	if err != nil {
		return story.Chapter{}, stepError(step, 0, err)
	}

	s.publish(Event{Type: EventOutline, Chapter: added.ID, Status: added.Status, Message: "added"})
	return added, nil
}

// UpdateChapter edits the outline fields of a chapter. Changed criteria are re-merged with the
// foreshadowing reveals for that chapter.
func (s *Session) UpdateChapter(id int, p ChapterPatch) (story.Chapter, error) {
	const step = "update chapter"
	if err := s.begin(); err != nil {
		return story.Chapter{}, stepError(step, id, err)
	}
	defer s.end()

	var out story.Chapter
	err := s.update(func(st *story.State) error {
		ch, err := chapterRef(st, id)
		if err != nil {
			return err
		}
		if p.CharacterIDs != nil {
			if err := knownCharacters(st, *p.CharacterIDs); err != nil {
				return err
			}
			ch.CharacterIDs = append([]string(nil), (*p.CharacterIDs)...)
		}
		if p.Title != nil {
			title := strings.TrimSpace(*p.Title)
			if title == "" {
				return errors.New("title is required")
			}
			ch.Title = title
		}
		if p.Summary != nil {
			ch.Summary = strings.TrimSpace(*p.Summary)
		}
		if p.AcceptanceCriteria != nil {
			ch.AcceptanceCriteria = foreshadow.StripSection(*p.AcceptanceCriteria)
			foreshadow.Recompute(st)
		}
		out = ch.Clone()
		return nil
	})
	if err != nil {
		return story.Chapter{}, stepError(step, id, err)
	}

	s.publish(Event{Type: EventOutline, Chapter: id, Status: out.Status, Message: "updated"})
	return out, nil
}

// RemoveChapter drops the last chapter while it is still pending, so ids keep matching positions.
func (s *Session) RemoveChapter(id int) error {
	const step = "remove chapter"
	if err := s.begin(); err != nil {
		return stepError(step, id, err)
	}
	defer s.end()

	err := s.update(func(st *story.State) error {
		i := st.ChapterIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrChapterNotFound, id)
		}
		if i != len(st.Outline)-1 || st.Outline[i].Status != story.StatusPending {
			return fmt.Errorf("%w: only the last pending chapter can be removed", ErrInvalidTransition)
		}
		st.Outline = st.Outline[:i]
		st.ChapterCount = max(len(st.Outline), 1)
		advanceStep(st)
		return nil
	})
	if err != nil {
		return stepError(step, id, err)
	}

	s.publish(Event{Type: EventOutline, Chapter: id, Message: "removed"})
	return nil
}

func knownCharacters(st *story.State, ids []string) error {
	for _, id := range ids {
		if _, ok := st.Character(id); !ok {
			return fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
		}
	}
	return nil
}

// AddCharacter adds a roster entry, assigning an id when none is given.
func (s *Session) AddCharacter(c story.Character) (story.Character, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Attributes = strings.TrimSpace(c.Attributes)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Name == "" {
		return story.Character{}, stepError("add character", 0, errors.New("name is required"))
	}

	err := s.update(func(st *story.State) error {
		if _, ok := st.Character(c.ID); ok {
			return fmt.Errorf("duplicate character id %q", c.ID)
		}
		st.Characters = append(st.Characters, c)
		return nil
	})
	if err != nil {
		return story.Character{}, stepError("add character", 0, err)
	}

	s.publish(Event{Type: EventCharacters, Message: "added " + c.Name})
	return c, nil
}

// UpdateCharacter changes a character's name or attributes; nil leaves a field alone.
func (s *Session) UpdateCharacter(id string, name, attributes *string) (story.Character, error) {
	var out story.Character
	err := s.update(func(st *story.State) error {
		for i := range st.Characters {
			if st.Characters[i].ID != id {
				continue
			}
			if name != nil {
				n := strings.TrimSpace(*name)
				if n == "" {
					return errors.New("name is required")
				}
				st.Characters[i].Name = n
			}
			if attributes != nil {
				st.Characters[i].Attributes = strings.TrimSpace(*attributes)
			}
			out = st.Characters[i]
			return nil
		}
		return fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	})
	if err != nil {
		return story.Character{}, stepError("update character", 0, err)
	}

	s.publish(Event{Type: EventCharacters, Message: "updated " + out.Name})
	return out, nil
}

// RemoveCharacter deletes a roster entry and drops it from every chapter's selection.
func (s *Session) RemoveCharacter(id string) error {
	err := s.update(func(st *story.State) error {
		i := -1
		for j, c := range st.Characters {
			if c.ID == id {
				i = j
				break
			}
		}
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
		}
		st.Characters = append(st.Characters[:i], st.Characters[i+1:]...)

		for k := range st.Outline {
			ids := st.Outline[k].CharacterIDs[:0]
			for _, cid := range st.Outline[k].CharacterIDs {
				if cid != id {
					ids = append(ids, cid)
				}
			}
			st.Outline[k].CharacterIDs = ids
		}
		return nil
	})
	if err != nil {
		return stepError("remove character", 0, err)
	}

	s.publish(Event{Type: EventCharacters, Message: "removed " + id})
	return nil
}

// SetSystemPrompt replaces the writer system prompt for this story; blank restores the default.
func (s *Session) SetSystemPrompt(text string) error {
	return s.update(func(st *story.State) error {
		st.SystemPrompt = strings.TrimSpace(text)
		return nil
	})
}

// Notes returns the foreshadowing notes in creation order.
func (s *Session) Notes() []story.ForeshadowingNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return foreshadow.Sorted(s.state.Foreshadowing)
}

// StaleReveals lists chapters whose criteria still name reveals no note asks for.
func (s *Session) StaleReveals() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return foreshadow.StaleReveals(s.state)
}

func (s *Session) AddNote(n story.ForeshadowingNote) (story.ForeshadowingNote, error) {
	var out story.ForeshadowingNote
	err := s.update(func(st *story.State) error {
		var err error
		out, err = s.svc.notes.Add(st, n)
		return err
	})
	if err != nil {
		return story.ForeshadowingNote{}, stepError("add foreshadowing note", 0, err)
	}

	s.publish(Event{Type: EventNotes, Chapter: out.TargetChapterID, Message: "added"})
	return out, nil
}

func (s *Session) UpdateNote(id string, p foreshadow.Patch) (story.ForeshadowingNote, error) {
	var out story.ForeshadowingNote
	err := s.update(func(st *story.State) error {
		var err error
		out, err = s.svc.notes.Update(st, id, p)
		return err
	})
	if err != nil {
		return story.ForeshadowingNote{}, stepError("update foreshadowing note", 0, err)
	}

	s.publish(Event{Type: EventNotes, Chapter: out.TargetChapterID, Message: "updated"})
	return out, nil
}

func (s *Session) DeleteNote(id string) error {
	err := s.update(func(st *story.State) error {
		return s.svc.notes.Delete(st, id)
	})
	if err != nil {
		return stepError("delete foreshadowing note", 0, err)
	}

	s.publish(Event{Type: EventNotes, Message: "deleted"})
	return nil
}
