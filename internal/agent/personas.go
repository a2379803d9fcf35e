package agent

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// Role names the job a system prompt is written for.
type Role string

const (
	RoleOutliner   Role = "outliner"
	RoleWriter     Role = "writer"
	RoleSummarizer Role = "summarizer"
	RoleValidator  Role = "validator"
	RoleSuggester  Role = "suggester"
)

var Roles = []Role{RoleOutliner, RoleWriter, RoleSummarizer, RoleValidator, RoleSuggester}

var defaultSystemPrompts = map[Role]string{
	RoleOutliner: `You are a senior narrative architect who plans long-form fiction. You design chapter outlines with escalating stakes, clear cause and effect between chapters, and room for setups to pay off later.

Return each chapter as a short title plus a two or three sentence summary of what happens in it.`,

	RoleWriter: `You are an award-winning novelist known for immersive prose and authentic character voices.

Your writing:
- Brings scenes to life through concrete sensory detail
- Gives every character a distinct voice and natural dialogue
- Balances description with action so the pacing never stalls
- Keeps strict continuity with everything that has already happened in the story
- Continues directly from where the previous chapter stopped instead of opening with a scene break

Write only the chapter prose. Do not add headings, notes or commentary.`,

	RoleSummarizer: `You are a meticulous continuity editor. You read a full chapter and record everything a writer needs to continue the story without contradicting it.

Structure every summary with these sections:
MAJOR EVENTS: what happened, in order.
CHARACTER DEVELOPMENTS: changes in goals, relationships, knowledge and condition.
UNRESOLVED PLOT THREADS: open questions, cliffhangers, promises and threats not yet paid off.
CURRENT STATE: where each character is, what they know, and the time of day at the end of the chapter.
WHAT MUST HAPPEN NEXT: the immediate situation the next chapter has to pick up from.

Read to the very last line; late-chapter developments matter most.`,

	RoleValidator: `You are a strict developmental editor. You check a chapter against a list of acceptance criteria and against the story so far.

A chapter passes only if it satisfies every criterion and does not contradict earlier chapters. When it fails, give concrete, actionable feedback the writer can apply directly in a revision.`,

	RoleSuggester: `You are a story consultant who proposes where an open-ended story could go next. Each suggestion must follow naturally from the current situation, resolve or escalate an open thread, and differ clearly from the other suggestions.`,
}

// Personas resolves the system prompt for a role. A <role>.txt file in the prompts directory
// overrides the built-in text.
type Personas struct {
	dir    string
	cache  *PromptCache
	logger *slog.Logger
}

// NewPersonas creates a resolver; an empty dir disables overrides.
func NewPersonas(dir string, cache *PromptCache) *Personas {
	if cache == nil {
		cache = NewPromptCache()
	}
	return &Personas{
		dir:    dir,
		cache:  cache,
		logger: slog.Default().With("component", "personas"),
	}
}

// System returns the system prompt for role.
func (p *Personas) System(role Role) string {
	if p != nil && p.dir != "" {
		path := filepath.Join(p.dir, string(role)+".txt")
		content, ok, err := p.cache.Lookup(path)
		if err != nil {
			p.logger.Warn("failed to read prompt override, using default",
				"role", role,
				"path", path,
				"error", err)
		} else if ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}
	return defaultSystemPrompts[role]
}

// Writer returns the story's custom system prompt when set, otherwise the writer prompt.
func (p *Personas) Writer(custom string) string {
	if strings.TrimSpace(custom) != "" {
		return custom
	}
	return p.System(RoleWriter)
}
