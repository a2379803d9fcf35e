package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

const (
	ExportFormat  = "chapterforge.story"
	ExportVersion = 1
)

// Envelope is the portable export file.
type Envelope struct {
	Format     string       `json:"format"`
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Story      *story.State `json:"story"`
}

// Export writes s wrapped in an Envelope.
func Export(w io.Writer, s *story.State, now time.Time) error {
	env := Envelope{
		Format:     ExportFormat,
		Version:    ExportVersion,
		ExportedAt: now.UTC(),
		Story:      s,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Import reads an Envelope and returns its story under a fresh id, ready to be upserted.
// Chapters that were mid-generation when exported are moved to error.
func Import(r io.Reader) (*story.State, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	if env.Format != ExportFormat {
		return nil, fmt.Errorf("unsupported import format %q", env.Format)
	}
	if env.Version < 1 || env.Version > ExportVersion {
		return nil, fmt.Errorf("unsupported import version %d", env.Version)
	}
	if env.Story == nil {
		return nil, fmt.Errorf("import file carries no story")
	}

	s := env.Story
	s.ID = uuid.NewString()
	s.RecoverInterrupted()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("imported story: %w", err)
	}
	return s, nil
}
