package prompt

import "github.com/vampirenirmal/chapterforge/internal/story"

var readingLevelGuidance = map[story.ReadingLevel]string{
	story.LevelElementary: `Audience: early readers, ages 6-9.
- Vocabulary: common, concrete words; explain any unusual word through context.
- Sentences: short and simple, mostly one idea each.
- Themes: friendship, courage, curiosity and family. Conflict is gentle and resolves hopefully.
- Content: no violence beyond mild peril, no romance, nothing frightening for long.`,

	story.LevelMiddleGrade: `Audience: middle-grade readers, ages 9-12.
- Vocabulary: everyday words with some richer language, defined through context.
- Sentences: varied but clear; keep paragraphs short and dialogue frequent.
- Themes: identity, loyalty, fairness and growing independence. Real stakes are allowed.
- Content: adventure peril and loss may appear off-page or briefly; no graphic violence, no romance beyond crushes, no profanity.`,

	story.LevelYoungAdult: `Audience: young-adult readers, ages 12-18.
- Vocabulary: full adult vocabulary used naturally.
- Sentences: complex structure is fine; keep the voice immediate and emotionally direct.
- Themes: identity, belonging, first love, moral ambiguity and consequences.
- Content: violence and danger may be shown with restraint; romance may be explored without explicit detail; mild profanity only when it fits the character.`,

	story.LevelAdult: `Audience: adult readers.
- Vocabulary: unrestricted; use precise and literary language where it serves the story.
- Sentences: any structure, including long, layered sentences and stylistic fragments.
- Themes: any, including complex moral, psychological and social themes.
- Content: mature content is permitted when it serves the narrative, handled with craft rather than for shock.`,
}

// ReadingLevelGuidance returns the writing instructions for a tier, defaulting to adult.
func ReadingLevelGuidance(level story.ReadingLevel) string {
	if g, ok := readingLevelGuidance[level]; ok {
		return g
	}
	return readingLevelGuidance[story.LevelAdult]
}
