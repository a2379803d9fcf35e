package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/session"
	"github.com/vampirenirmal/chapterforge/internal/store"
)

// errBadRequest marks errors caused by the request itself.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string `json:"error"`
	Step    string `json:"step,omitempty"`
	Chapter int    `json:"chapter,omitempty"`
}

func statusFor(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, errBadRequest), errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrChapterNotFound),
		errors.Is(err, session.ErrCharacterNotFound),
		errors.Is(err, session.ErrNoOutcome),
		errors.Is(err, foreshadow.ErrNoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrGenerationInProgress),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrOutlineLocked),
		errors.Is(err, session.ErrOutlineFull),
		errors.Is(err, session.ErrNoPendingChapter),
		errors.Is(err, session.ErrNoDecision),
		errors.Is(err, session.ErrNoRevision),
		errors.Is(err, session.ErrNotContinuous),
		errors.Is(err, store.ErrTitleTaken):
		return http.StatusConflict
	case agent.KindOf(err) != agent.KindUnknown, errors.Is(err, session.ErrInvalidOutline):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error()}
	var se *session.StepError
	if errors.As(err, &se) {
		resp.Step = se.Step
		resp.Chapter = se.Chapter
	}

	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, resp)
}
