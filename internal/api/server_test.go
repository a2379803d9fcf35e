package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/config"
	"github.com/vampirenirmal/chapterforge/internal/session"
	"github.com/vampirenirmal/chapterforge/internal/store"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

const outlineJSON = `{"chapters":[{"title":"Sparks","summary":"Ash flees."},{"title":"Kindling","summary":"Ash meets Wren."}]}`

type testEnv struct {
	mock *agent.MockClient
	hub  *Hub
	srv  *Server
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	mock := agent.NewMockClient().
		On(`{"chapters"`, outlineJSON).
		On("Summarize chapter", "A summary.").
		On("Write chapter 1,", "Chapter one prose.").
		On("Write chapter 2,", "Chapter two prose.")

	limits := config.DefaultLimits()
	limits.AutosaveDelay = time.Hour

	hub := NewHub(nil)
	mgr := session.NewManager(agent.NewGateway(mock), store.NewFileStore(t.TempDir()),
		session.WithLimits(limits),
		session.WithNotifier(hub))
	t.Cleanup(func() {
		hub.Close()
		mgr.Close(context.Background())
	})

	return &testEnv{mock: mock, hub: hub, srv: NewServer(mgr, hub)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doContext(t, context.Background(), method, path, body)
}

func (e *testEnv) doContext(t *testing.T, ctx context.Context, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createStory(t *testing.T) story.State {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/stories", map[string]any{
		"title": "The Last Embers", "genre": "Fantasy", "chapters": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[story.State](t, rec)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStoryLifecycle(t *testing.T) {
	e := newEnv(t)
	st := e.createStory(t)
	assert.Equal(t, story.StepSetup, st.Step)
	base := "/api/stories/" + st.ID

	rec := e.do(t, http.MethodPost, base+"/outline", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outline := decode[struct{ Outline []story.Chapter }](t, rec).Outline
	require.Len(t, outline, 2)

	rec = e.do(t, http.MethodGet, base+"/chapters/1/prompt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["prompt"], "Write chapter 1,")

	rec = e.do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ch := decode[story.Chapter](t, rec)
	assert.Equal(t, 1, ch.ID)
	assert.Equal(t, "Chapter one prose.", ch.Content)

	rec = e.do(t, http.MethodPost, base+"/write-all", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["written"])

	rec = e.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, story.StepComplete, decode[story.State](t, rec).Step)

	rec = e.do(t, http.MethodGet, "/api/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Stories []store.Summary }](t, rec).Stories
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Completed)

	rec = e.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateNext_OutlivesRequest(t *testing.T) {
	e := newEnv(t)
	st := e.createStory(t)
	base := "/api/stories/" + st.ID
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, base+"/outline", nil).Code)

	e.mock.WithDelay(60 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	rec := e.doContext(t, ctx, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Error(t, ctx.Err())

	rec = e.do(t, http.MethodGet, base+"/chapters/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ch := decode[story.Chapter](t, rec)
	assert.Equal(t, story.StatusCompleted, ch.Status)
	assert.Equal(t, "Chapter one prose.", ch.Content)
	assert.Empty(t, ch.LastError)
	assert.Equal(t, "A summary.", ch.DetailedSummary)
}

func TestErrorStatuses(t *testing.T) {
	e := newEnv(t)
	st := e.createStory(t)
	base := "/api/stories/" + st.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown story", http.MethodGet, "/api/stories/nope", nil, http.StatusNotFound},
		{"missing title", http.MethodPost, "/api/stories", map[string]any{"genre": "Fantasy"}, http.StatusBadRequest},
		{"bad level", http.MethodPost, "/api/stories", map[string]any{"title": "T", "genre": "G", "readingLevel": "toddler"}, http.StatusBadRequest},
		{"bad chapter number", http.MethodGet, base + "/chapters/one", nil, http.StatusBadRequest},
		{"unknown chapter", http.MethodGet, base + "/chapters/9", nil, http.StatusNotFound},
		{"regenerate without feedback", http.MethodPost, base + "/chapters/1/regenerate", map[string]any{}, http.StatusBadRequest},
		{"outcomes in fixed mode", http.MethodPost, base + "/outcomes/refresh", nil, http.StatusConflict},
		{"nothing to write", http.MethodPost, base + "/next", nil, http.StatusConflict},
		{"unknown note", http.MethodDelete, base + "/foreshadowing/nope", nil, http.StatusNotFound},
		{"invalid note", http.MethodPost, base + "/foreshadowing", map[string]any{"targetChapterId": 0}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestOutlineAndRosterEditing(t *testing.T) {
	e := newEnv(t)
	st := e.createStory(t)
	base := "/api/stories/" + st.ID

	rec := e.do(t, http.MethodPost, base+"/characters", map[string]any{"id": "ash", "name": "Ash"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, base+"/chapters", map[string]any{
		"title": "Prologue", "summary": "Before the fire.", "characterIds": []string{"ash"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[story.Chapter](t, rec).ID)

	rec = e.do(t, http.MethodPost, base+"/foreshadowing", map[string]any{
		"targetChapterId": 1, "revealDescription": "Ash can hold fire",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[story.ForeshadowingNote](t, rec)

	rec = e.do(t, http.MethodGet, base+"/chapters/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[story.Chapter](t, rec).AcceptanceCriteria, "Ash can hold fire")

	type noteList struct {
		Notes        []story.ForeshadowingNote
		StaleReveals []int
	}
	rec = e.do(t, http.MethodGet, base+"/foreshadowing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[noteList](t, rec).StaleReveals)

	rec = e.do(t, http.MethodDelete, base+"/foreshadowing/"+note.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodGet, base+"/foreshadowing", nil)
	listed := decode[noteList](t, rec)
	assert.Empty(t, listed.Notes)
	assert.Equal(t, []int{1}, listed.StaleReveals)

	rec = e.do(t, http.MethodDelete, base+"/characters/ash", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, base+"/chapters/1", nil)
	assert.Empty(t, decode[story.Chapter](t, rec).CharacterIDs)

	rec = e.do(t, http.MethodDelete, base+"/chapters/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExportImport(t *testing.T) {
	e := newEnv(t)
	st := e.createStory(t)

	rec := e.do(t, http.MethodGet, "/api/stories/"+st.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "the-last-embers.json")

	req := httptest.NewRequest(http.MethodPost, "/api/stories/import", bytes.NewReader(rec.Body.Bytes()))
	imp := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(imp, req)
	require.Equal(t, http.StatusCreated, imp.Code, imp.Body.String())
	assert.Equal(t, "The Last Embers", decode[story.State](t, imp).Title)

	req = httptest.NewRequest(http.MethodPost, "/api/stories/import", strings.NewReader(`{"format":"other"}`))
	bad := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestEventStream(t *testing.T) {
	e := newEnv(t)
	st := e.createStory(t)

	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?story=" + st.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return e.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	rec := e.do(t, http.MethodPost, "/api/stories/"+st.ID+"/outline", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev session.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, st.ID, ev.StoryID)
	assert.Equal(t, session.EventOutline, ev.Type)
}

func TestHub_FiltersByStory(t *testing.T) {
	h := NewHub(nil)
	other := &subscriber{storyID: "b", send: make(chan []byte, 1)}
	all := &subscriber{send: make(chan []byte, 1)}
	h.register(other)
	h.register(all)

	h.Publish(session.Event{StoryID: "a", Type: session.EventSaved})
	assert.Len(t, other.send, 0)
	assert.Len(t, all.send, 1)

	// full queue drops instead of blocking
	h.Publish(session.Event{StoryID: "a", Type: session.EventSaved})
	assert.Len(t, all.send, 1)

	h.unregister(all)
	assert.Equal(t, 1, h.Subscribers())
}
