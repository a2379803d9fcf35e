package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/chapterforge/internal/story"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "stories.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"sqlite": db,
		"files":  NewFileStore(t.TempDir()),
	}
}

func sampleStory(title string) *story.State {
	s := story.New(title, "Fantasy", 2, story.LevelAdult, story.ModeFixed)
	s.Step = story.StepWriting
	s.Outline = []story.Chapter{
		{ID: 1, Title: "One", Summary: "Start", Status: story.StatusCompleted, Content: "Once upon a time."},
		{ID: 2, Title: "Two", Summary: "End", Status: story.StatusPending},
	}
	return s
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := sampleStory("Round Trip")
			id, err := st.Save(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, s.ID, id)

			got, err := st.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, s.Title, got.Title)
			require.Len(t, got.Outline, 2)
			assert.Equal(t, "Once upon a time.", got.Outline[0].Content)
			assert.Equal(t, story.StatusPending, got.Outline[1].Status)
		})
	}
}

func TestStore_UpsertByTitle(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := sampleStory("Same Title")
			id1, err := st.Save(ctx, first)
			require.NoError(t, err)

			second := sampleStory("Same Title")
			second.Genre = "Horror"
			id2, err := st.Save(ctx, second)
			require.NoError(t, err)
			assert.Equal(t, id1, id2, "a title collision updates the stored story")

			list, err := st.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "Horror", list[0].Genre)
			assert.Equal(t, 1, list[0].Completed)
			assert.Equal(t, 2, list[0].Chapters)

			got, err := st.Get(ctx, id1)
			require.NoError(t, err)
			assert.Equal(t, id1, got.ID)
		})
	}
}

func TestStore_RenameOntoTakenTitle(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := sampleStory("Alpha")
			b := sampleStory("Beta")
			_, err := st.Save(ctx, a)
			require.NoError(t, err)
			_, err = st.Save(ctx, b)
			require.NoError(t, err)

			b.Title = "Alpha"
			_, err = st.Save(ctx, b)
			assert.ErrorIs(t, err, ErrTitleTaken)
		})
	}
}

func TestStore_ListOrderAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			older := sampleStory("Older")
			older.UpdatedAt = time.Now().Add(-time.Hour)
			newer := sampleStory("Newer")
			_, err := st.Save(ctx, older)
			require.NoError(t, err)
			_, err = st.Save(ctx, newer)
			require.NoError(t, err)

			list, err := st.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "Newer", list[0].Title)

			require.NoError(t, st.Delete(ctx, older.ID))
			_, err = st.Get(ctx, older.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, st.Delete(ctx, older.ID), ErrNotFound)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Get(context.Background(), "does-not-exist")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestExportImport(t *testing.T) {
	s := sampleStory("Portable")
	s.Outline[1].Status = story.StatusGenerating

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, s, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Contains(t, buf.String(), `"format": "chapterforge.story"`)

	imported, err := Import(&buf)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, imported.ID)
	assert.Equal(t, s.Title, imported.Title)
	assert.Equal(t, s.Outline[0].Content, imported.Outline[0].Content)
	assert.Equal(t, story.StatusError, imported.Outline[1].Status)
}

func TestImport_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"wrong format", `{"format":"other","version":1,"story":{}}`},
		{"future version", `{"format":"chapterforge.story","version":9,"story":{}}`},
		{"no story", `{"format":"chapterforge.story","version":1}`},
		{"invalid story", `{"format":"chapterforge.story","version":1,"story":{"title":""}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(bytes.NewBufferString(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	st, err := Open("files", "", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, st)

	st, err = Open("sqlite", filepath.Join(dir, "db", "s.db"), dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, st)
	require.NoError(t, st.Close())

	_, err = Open("postgres", "", dir)
	assert.Error(t, err)
}
