// Package acceptance checks generated chapters against their acceptance criteria.
package acceptance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/prompt"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

// ErrNoCriteria is returned when Check is called for a chapter without criteria.
var ErrNoCriteria = errors.New("no acceptance criteria")

// ObjectGenerator is the structured half of the LLM gateway.
type ObjectGenerator interface {
	GenerateObject(ctx context.Context, systemPrompt, prompt string, schema *agent.Schema, out any) error
}

// Request is one chapter to judge.
type Request = prompt.ValidationInput

// Verdict is the validator's decision. Feedback is written to be passed straight back as
// regeneration feedback.
type Verdict struct {
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback"`
}

type Validator struct {
	gen    ObjectGenerator
	system func() string
	now    func() time.Time
	logger *slog.Logger
}

func New(gen ObjectGenerator, systemPrompt string) *Validator {
	return &Validator{
		gen:    gen,
		system: func() string { return systemPrompt },
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "acceptance"),
	}
}

// WithSystem resolves the system prompt through fn on every check.
func (v *Validator) WithSystem(fn func() string) *Validator {
	v.system = fn
	return v
}

// Check asks the model whether the content meets the criteria and fits the story so far.
func (v *Validator) Check(ctx context.Context, req Request) (Verdict, error) {
	if strings.TrimSpace(req.Criteria) == "" {
		return Verdict{}, ErrNoCriteria
	}

	start := time.Now()
	var verdict Verdict
	if err := v.gen.GenerateObject(ctx, v.system(), prompt.Validation(req), agent.VerdictSchema, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("validating %q: %w", req.Title, err)
	}
	verdict.Feedback = strings.TrimSpace(verdict.Feedback)

	v.logger.Debug("chapter validated",
		"title", req.Title,
		"passed", verdict.Passed,
		"feedback_length", len(verdict.Feedback),
		"duration_ms", time.Since(start).Milliseconds())
	return verdict, nil
}

// Result converts a verdict into the record stored on the chapter.
func (v *Validator) Result(verdict Verdict) *story.ValidationResult {
	return &story.ValidationResult{
		Passed:    verdict.Passed,
		Feedback:  verdict.Feedback,
		Timestamp: v.now(),
	}
}
