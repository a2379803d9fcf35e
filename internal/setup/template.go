// Package setup turns YAML story templates into new stories.
package setup

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vampirenirmal/chapterforge/internal/storage"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

// Template is the on-disk story setup.
type Template struct {
	Title         string              `yaml:"title" validate:"required,max=200"`
	Genre         string              `yaml:"genre" validate:"required,max=100"`
	Chapters      int                 `yaml:"chapters" validate:"min=1,max=200"`
	ReadingLevel  string              `yaml:"reading_level" validate:"omitempty,oneof=elementary middle-grade young-adult adult"`
	Mode          string              `yaml:"mode" validate:"omitempty,oneof=fixed continuous"`
	SystemPrompt  string              `yaml:"system_prompt"`
	Characters    []CharacterTemplate `yaml:"characters" validate:"dive"`
	Foreshadowing []NoteTemplate      `yaml:"foreshadowing" validate:"dive"`
	// Criteria maps a chapter number to its acceptance criteria; applied once the outline exists.
	Criteria map[int]string `yaml:"criteria"`
}

type CharacterTemplate struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name" validate:"required"`
	Attributes string `yaml:"attributes"`
}

type NoteTemplate struct {
	Chapter int    `yaml:"chapter" validate:"min=1"`
	Reveal  string `yaml:"reveal" validate:"required"`
	Hint    string `yaml:"hint"`
}

var validate = validator.New()

// Load reads and validates a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates template YAML.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if t.Chapters == 0 {
		t.Chapters = 1
	}
	if err := validate.Struct(&t); err != nil {
		return nil, fmt.Errorf("template validation failed: %w", err)
	}
	for n := range t.Criteria {
		if n < 1 {
			return nil, fmt.Errorf("template validation failed: criteria for chapter %d", n)
		}
	}
	return &t, nil
}

// Story builds a new story in the setup step. Characters without an id get one derived from
// their name; notes get fresh ids in file order.
func (t *Template) Story(now time.Time) (*story.State, error) {
	level := story.LevelAdult
	if t.ReadingLevel != "" {
		level = story.ReadingLevel(t.ReadingLevel)
	}
	s := story.New(strings.TrimSpace(t.Title), strings.TrimSpace(t.Genre), t.Chapters, level, story.Mode(t.Mode))
	s.SystemPrompt = strings.TrimSpace(t.SystemPrompt)

	used := map[string]bool{}
	for _, c := range t.Characters {
		id := c.ID
		if id == "" {
			id = uniqueID(storage.Slug(c.Name, 40), used)
		}
		used[id] = true
		s.Characters = append(s.Characters, story.Character{
			ID:         id,
			Name:       strings.TrimSpace(c.Name),
			Attributes: strings.TrimSpace(c.Attributes),
		})
	}

	for i, n := range t.Foreshadowing {
		s.Foreshadowing = append(s.Foreshadowing, story.ForeshadowingNote{
			ID:                uuid.NewString(),
			TargetChapterID:   n.Chapter,
			RevealDescription: strings.TrimSpace(n.Reveal),
			ForeshadowingHint: strings.TrimSpace(n.Hint),
			CreatedAt:         now.Add(time.Duration(i) * time.Millisecond),
		})
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// CriteriaChapters returns the chapter numbers that carry criteria, ascending.
func (t *Template) CriteriaChapters() []int {
	out := make([]int, 0, len(t.Criteria))
	for n := range t.Criteria {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func uniqueID(base string, used map[string]bool) string {
	id := base
	for i := 2; used[id]; i++ {
		id = fmt.Sprintf("%s-%d", base, i)
	}
	return id
}

// Example is a commented starting template.
const Example = `# chapterforge story template
title: The Last Embers
genre: Fantasy
chapters: 5
reading_level: young-adult   # elementary | middle-grade | young-adult | adult
mode: fixed                  # fixed | continuous
system_prompt: ""

characters:
  - name: Ash
    attributes: reluctant heir to a burned kingdom, afraid of fire
  - name: Wren
    attributes: hedge witch who knows more than she says

foreshadowing:
  - chapter: 4
    reveal: Wren is Ash's mother
    hint: Wren hums the lullaby Ash remembers from childhood

criteria:
  2: Include a twist
  5: Resolve the question of the crown
`
