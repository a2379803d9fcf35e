package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/session"
	"github.com/vampirenirmal/chapterforge/internal/storage"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

// open resolves the :id parameter to a session, writing the error response when it cannot.
func (s *Server) open(c *gin.Context) (*session.Session, bool) {
	sess, err := s.manager.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

// generation returns the context for model calls. They outlive the request: a client that
// disconnects does not abort a chapter that is already being written.
func generation(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func intParam(c *gin.Context, name string) (int, error) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, badRequest(fmt.Errorf("%s must be a number", name))
	}
	return n, nil
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, badRequest(err))
		return false
	}
	return true
}

// chapterCall runs fn with the session and the :num chapter id.
func (s *Server) chapterCall(c *gin.Context, fn func(*session.Session, int) (any, error)) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	num, err := intParam(c, "num")
	if err != nil {
		s.fail(c, err)
		return
	}
	out, err := fn(sess, num)
	if err != nil {
		s.fail(c, err)
		return
	}
	if out == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Stories

type createRequest struct {
	Title        string            `json:"title" binding:"required,max=200"`
	Genre        string            `json:"genre" binding:"required,max=100"`
	Chapters     int               `json:"chapters" binding:"omitempty,min=1,max=200"`
	ReadingLevel string            `json:"readingLevel"`
	Mode         string            `json:"mode" binding:"omitempty,oneof=fixed continuous"`
	SystemPrompt string            `json:"systemPrompt"`
	Characters   []story.Character `json:"characters"`
}

func (s *Server) listStories(c *gin.Context) {
	list, err := s.manager.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": list})
}

func (s *Server) createStory(c *gin.Context) {
	var req createRequest
	if !s.bind(c, &req) {
		return
	}

	var level story.ReadingLevel
	if req.ReadingLevel != "" {
		l, err := story.ParseReadingLevel(req.ReadingLevel)
		if err != nil {
			s.fail(c, badRequest(err))
			return
		}
		level = l
	}
	st := story.New(req.Title, req.Genre, max(req.Chapters, 1), level, story.Mode(req.Mode))
	st.SystemPrompt = req.SystemPrompt
	st.Characters = req.Characters
	if err := st.Validate(); err != nil {
		s.fail(c, badRequest(err))
		return
	}

	sess, err := s.manager.Create(c.Request.Context(), st)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

func (s *Server) getStory(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) deleteStory(c *gin.Context) {
	if err := s.manager.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) exportStory(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	name := storage.ExportFileName(sess.Snapshot().Title, s.now())
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := s.manager.Export(c.Request.Context(), sess.ID(), c.Writer); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) importStory(c *gin.Context) {
	sess, err := s.manager.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

func (s *Server) setSystemPrompt(c *gin.Context) {
	var req struct {
		SystemPrompt string `json:"systemPrompt"`
	}
	if !s.bind(c, &req) {
		return
	}
	sess, ok := s.open(c)
	if !ok {
		return
	}
	if err := sess.SetSystemPrompt(req.SystemPrompt); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Generation

func (s *Server) generateOutline(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	outline, err := sess.GenerateOutline(generation(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outline": outline})
}

func (s *Server) generateNext(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}
	sess, ok := s.open(c)
	if !ok {
		return
	}
	ch, err := sess.GenerateNext(generation(c), req.Prompt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) writeAll(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	n, err := sess.WriteAll(generation(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"written": n, "story": sess.Snapshot()})
}

// Chapters

func (s *Server) addChapter(c *gin.Context) {
	var stub session.ChapterStub
	if !s.bind(c, &stub) {
		return
	}
	sess, ok := s.open(c)
	if !ok {
		return
	}
	ch, err := sess.AddChapter(stub)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func (s *Server) getChapter(c *gin.Context) {
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		return sess.Chapter(id)
	})
}

func (s *Server) updateChapter(c *gin.Context) {
	var p session.ChapterPatch
	if !s.bind(c, &p) {
		return
	}
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		return sess.UpdateChapter(id, p)
	})
}

func (s *Server) removeChapter(c *gin.Context) {
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		return nil, sess.RemoveChapter(id)
	})
}

func (s *Server) previewPrompt(c *gin.Context) {
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		p, err := sess.PreviewPrompt(generation(c), id)
		if err != nil {
			return nil, err
		}
		return gin.H{"chapter": id, "prompt": p}, nil
	})
}

func (s *Server) regenerate(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		return sess.Regenerate(generation(c), id, req.Feedback)
	})
}

func (s *Server) undo(c *gin.Context) {
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		return sess.UndoRevision(id)
	})
}

func (s *Server) editContent(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		return sess.EditContent(id, req.Content)
	})
}

func (s *Server) acceptValidation(c *gin.Context) {
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		if err := sess.AcceptValidation(id); err != nil {
			return nil, err
		}
		return sess.Chapter(id)
	})
}

func (s *Server) retryValidation(c *gin.Context) {
	s.chapterCall(c, func(sess *session.Session, id int) (any, error) {
		return sess.RetryValidation(generation(c), id)
	})
}

// Outcomes

func (s *Server) listOutcomes(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": sess.Outcomes()})
}

func (s *Server) refreshOutcomes(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	outcomes, err := sess.RefreshOutcomes(generation(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

func (s *Server) chooseOutcome(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	idx, err := intParam(c, "index")
	if err != nil {
		s.fail(c, err)
		return
	}
	ch, err := sess.ChooseOutcome(idx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// Foreshadowing

func (s *Server) listNotes(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": sess.Notes(), "staleReveals": sess.StaleReveals()})
}

func (s *Server) addNote(c *gin.Context) {
	var n story.ForeshadowingNote
	if !s.bind(c, &n) {
		return
	}
	sess, ok := s.open(c)
	if !ok {
		return
	}
	out, err := sess.AddNote(n)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) updateNote(c *gin.Context) {
	var p foreshadow.Patch
	if !s.bind(c, &p) {
		return
	}
	sess, ok := s.open(c)
	if !ok {
		return
	}
	out, err := sess.UpdateNote(c.Param("note"), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteNote(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	if err := sess.DeleteNote(c.Param("note")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Characters

func (s *Server) addCharacter(c *gin.Context) {
	var ch story.Character
	if !s.bind(c, &ch) {
		return
	}
	sess, ok := s.open(c)
	if !ok {
		return
	}
	out, err := sess.AddCharacter(ch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) updateCharacter(c *gin.Context) {
	var req struct {
		Name       *string `json:"name"`
		Attributes *string `json:"attributes"`
	}
	if !s.bind(c, &req) {
		return
	}
	sess, ok := s.open(c)
	if !ok {
		return
	}
	out, err := sess.UpdateCharacter(c.Param("character"), req.Name, req.Attributes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) removeCharacter(c *gin.Context) {
	sess, ok := s.open(c)
	if !ok {
		return
	}
	if err := sess.RemoveCharacter(c.Param("character")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
