package continuity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

func completed(id int, content string) story.Chapter {
	return story.Chapter{ID: id, Title: "Ch", Content: content, Status: story.StatusCompleted}
}

func newSummarizer(mock *agent.MockClient) *Summarizer {
	return New(agent.NewGateway(mock), "summarize")
}

func TestAccumulate_EmptyInputMakesNoCall(t *testing.T) {
	mock := agent.NewMockClient()
	acc, err := newSummarizer(mock).Accumulate(context.Background(), "Fantasy", nil)
	require.NoError(t, err)
	assert.Empty(t, acc.Summary)
	assert.Empty(t, mock.Calls())
}

func TestAccumulate_CachesPerChapter(t *testing.T) {
	mock := agent.NewMockClient().Default("UNRESOLVED PLOT THREADS: the dagger")
	s := newSummarizer(mock)
	chapters := []story.Chapter{completed(2, "second"), completed(1, "first")}

	first, err := s.Accumulate(context.Background(), "Fantasy", chapters)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Generated)
	assert.Len(t, mock.Calls(), 2)
	assert.Equal(t, 1, first.Chapters[0].ID, "chapters are returned in id order")
	assert.True(t, strings.HasPrefix(first.Summary, "Chapter 1: Ch\n"))

	// input slice is left alone; caller merges explicitly
	assert.Empty(t, chapters[0].DetailedSummary)

	second, err := s.Accumulate(context.Background(), "Fantasy", first.Chapters)
	require.NoError(t, err)
	assert.Zero(t, second.Generated)
	assert.Len(t, mock.Calls(), 2, "cached summaries must not be regenerated")
	assert.Equal(t, first.Summary, second.Summary)
}

func TestAccumulate_StaleDigestRegenerates(t *testing.T) {
	mock := agent.NewMockClient().Default("summary")
	s := newSummarizer(mock)

	acc, err := s.Accumulate(context.Background(), "Fantasy", []story.Chapter{completed(1, "old text")})
	require.NoError(t, err)

	edited := acc.Chapters
	edited[0].Content = "new text"
	acc, err = s.Accumulate(context.Background(), "Fantasy", edited)
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Generated)
	assert.Equal(t, Digest("new text"), acc.Chapters[0].SummaryDigest)
}

func TestAccumulate_FailureReturnsPartial(t *testing.T) {
	mock := agent.NewMockClient().
		OnError("chapter 2", errors.New("gateway down")).
		Default("summary")
	s := newSummarizer(mock)

	acc, err := s.Accumulate(context.Background(), "Fantasy", []story.Chapter{completed(1, "a"), completed(2, "b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chapter 2")
	assert.Equal(t, agent.KindTransport, agent.KindOf(err))
	assert.True(t, Fresh(acc.Chapters[0]))
	assert.False(t, Fresh(acc.Chapters[1]))
}

func TestDetailed_SendsFullContent(t *testing.T) {
	mock := agent.NewMockClient().Default("summary")
	content := strings.Repeat("x ", 50000) + "LAST LINE"

	ch, err := newSummarizer(mock).Detailed(context.Background(), "Fantasy", completed(1, content))
	require.NoError(t, err)
	assert.Equal(t, "summary", ch.DetailedSummary)

	call, _ := mock.LastCall()
	assert.Contains(t, call.User, "LAST LINE")
	assert.Equal(t, "summarize", call.System)

	_, err = newSummarizer(mock).Detailed(context.Background(), "Fantasy", completed(2, "  "))
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestMerge_OnlyMatchingContent(t *testing.T) {
	outline := []story.Chapter{completed(1, "a"), completed(2, "b")}
	updated := []story.Chapter{
		{ID: 1, DetailedSummary: "s1", SummaryDigest: Digest("a")},
		{ID: 2, DetailedSummary: "s2", SummaryDigest: Digest("stale")},
	}

	assert.Equal(t, 1, Merge(outline, updated))
	assert.Equal(t, "s1", outline[0].DetailedSummary)
	assert.Empty(t, outline[1].DetailedSummary)
}

func TestPreceding(t *testing.T) {
	outline := []story.Chapter{
		completed(1, "a"),
		{ID: 2, Status: story.StatusError},
		completed(3, "c"),
		completed(4, "d"),
	}
	got := Preceding(outline, 3)
	require.Len(t, got, 2)
	assert.Equal(t, []int{1, 3}, []int{got[0].ID, got[1].ID})
}
