package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptCache(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "writer.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("You write noir."), 0644))

	cache := NewPromptCache()

	t.Run("loads prompt from file", func(t *testing.T) {
		content, err := cache.LoadPrompt(testFile)
		require.NoError(t, err)
		assert.Equal(t, "You write noir.", content)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("serves unchanged file from cache", func(t *testing.T) {
		cache.mu.Lock()
		entry := cache.entries[testFile]
		entry.content = "from cache"
		cache.entries[testFile] = entry
		cache.mu.Unlock()

		content, err := cache.LoadPrompt(testFile)
		require.NoError(t, err)
		assert.Equal(t, "from cache", content)
	})

	t.Run("rereads edited file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(testFile, []byte("You write hardboiled noir."), 0644))
		later := time.Now().Add(time.Minute)
		require.NoError(t, os.Chtimes(testFile, later, later))

		content, err := cache.LoadPrompt(testFile)
		require.NoError(t, err)
		assert.Equal(t, "You write hardboiled noir.", content)
	})

	t.Run("missing files are looked up again", func(t *testing.T) {
		missing := filepath.Join(dir, "validator.txt")
		_, ok, err := cache.Lookup(missing)
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = cache.LoadPrompt(missing)
		assert.Error(t, err)

		require.NoError(t, os.WriteFile(missing, []byte("late"), 0644))
		content, ok, err := cache.Lookup(missing)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "late", content)
	})

	t.Run("removed file drops out", func(t *testing.T) {
		require.NoError(t, os.Remove(testFile))
		_, ok, err := cache.Lookup(testFile)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, cache.Len())

		cache.Clear()
		assert.Zero(t, cache.Len())
	})
}

func TestPersonas_OverrideAndCustomWriter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarizer.txt"), []byte("  Summarize tersely.\n"), 0644))

	p := NewPersonas(dir, nil)
	assert.Equal(t, "Summarize tersely.", p.System(RoleSummarizer))
	assert.Equal(t, defaultSystemPrompts[RoleValidator], p.System(RoleValidator))

	assert.Equal(t, "Write like Le Guin.", p.Writer("Write like Le Guin."))
	assert.Equal(t, defaultSystemPrompts[RoleWriter], p.Writer("  "))

	for _, r := range Roles {
		assert.NotEmpty(t, NewPersonas("", nil).System(r), r)
	}
}
