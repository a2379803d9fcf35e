// Package session runs the story workflow: outline, chapter generation, continuity, validation,
// outcomes and autosave. A Session owns one story; the Manager owns the open sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vampirenirmal/chapterforge/internal/acceptance"
	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/config"
	"github.com/vampirenirmal/chapterforge/internal/continuity"
	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/store"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

// services are shared by every session of a manager.
type services struct {
	gateway    *agent.Gateway
	personas   *agent.Personas
	summarizer *continuity.Summarizer
	validator  *acceptance.Validator
	notes      *foreshadow.Engine
	store      store.Store
	limits     config.Limits
	notifier   Notifier
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*services)

func WithLimits(l config.Limits) Option {
	return func(s *services) {
		s.limits = l
	}
}

// WithPersonas sets the role system prompts; the built-in prompts are used otherwise.
func WithPersonas(p *agent.Personas) Option {
	return func(s *services) {
		s.personas = p
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *services) {
		s.notifier = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *services) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *services) {
		s.logger = logger
	}
}

// Manager opens, creates and closes sessions over a store.
type Manager struct {
	svc      *services
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(gateway *agent.Gateway, st store.Store, opts ...Option) *Manager {
	svc := &services{
		gateway:  gateway,
		store:    st,
		limits:   config.DefaultLimits(),
		notifier: nopNotifier{},
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.personas == nil {
		svc.personas = agent.NewPersonas("", nil)
	}
	svc.logger = svc.logger.With("component", "session")
	personas := svc.personas
	svc.summarizer = continuity.New(gateway, "").WithSystem(func() string {
		return personas.System(agent.RoleSummarizer)
	})
	svc.validator = acceptance.New(gateway, "").WithSystem(func() string {
		return personas.System(agent.RoleValidator)
	})
	svc.notes = foreshadow.NewEngine().WithClock(svc.now)

	return &Manager{
		svc:      svc,
		sessions: make(map[string]*Session),
	}
}

// Create validates a new story, stores it and opens a session on it. A story whose title
// matches a stored one replaces that story and takes over its id, unless that story is generating.
func (m *Manager) Create(ctx context.Context, s *story.State) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.RecoverInterrupted()

	if !m.svc.limits.PersistOutcomes {
		s.Outcomes = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	held, err := m.holdReplaced(s)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, old := range held {
			old.gate.Release(1)
		}
	}()

	id, err := m.svc.store.Save(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("saving story: %w", err)
	}
	s.ID = id

	for _, old := range held {
		if old.id == id {
			old.autosave.Discard()
		}
	}
	sess := m.newSession(s)
	m.sessions[id] = sess

	m.svc.logger.Info("story created", "story_id", id, "title", s.Title, "mode", s.Mode)
	return sess, nil
}

// holdReplaced takes the gate of every open session the story would overwrite, matched by id or
// title. Nothing is held when one of them is generating. The caller holds m.mu.
func (m *Manager) holdReplaced(s *story.State) ([]*Session, error) {
	var held []*Session
	for id, sess := range m.sessions {
		sess.mu.Lock()
		match := id == s.ID || sess.state.Title == s.Title
		sess.mu.Unlock()
		if !match {
			continue
		}
		if !sess.gate.TryAcquire(1) {
			for _, h := range held {
				h.gate.Release(1)
			}
			return nil, ErrGenerationInProgress
		}
		held = append(held, sess)
	}
	return held, nil
}

// Open returns the open session for id, loading the story from the store if needed.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}

	s, err := m.svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sess := m.newSession(s)
	if n := s.RecoverInterrupted(); n > 0 {
		m.svc.logger.Warn("recovered interrupted chapters", "story_id", id, "chapters", n)
		sess.autosave.Schedule()
	}
	m.sessions[id] = sess
	return sess, nil
}

func (m *Manager) newSession(s *story.State) *Session {
	sess := &Session{
		id:     s.ID,
		svc:    m.svc,
		gate:   semaphore.NewWeighted(1),
		state:  s,
		logger: m.svc.logger.With("story_id", s.ID),
	}
	sess.autosave = newAutosaver(m.svc.limits.AutosaveDelay, sess.persist, sess.logger)
	return sess
}

// List flushes open sessions and lists every stored story.
func (m *Manager) List(ctx context.Context) ([]store.Summary, error) {
	if err := m.Flush(ctx); err != nil {
		m.svc.logger.Warn("flush before list failed", "error", err)
	}
	return m.svc.store.List(ctx)
}

// Delete removes a story. A story with a generation in flight cannot be deleted.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		if !sess.gate.TryAcquire(1) {
			return ErrGenerationInProgress
		}
		sess.autosave.Discard()
		delete(m.sessions, id)
		sess.gate.Release(1)
	}

	if err := m.svc.store.Delete(ctx, id); err != nil {
		return err
	}
	m.svc.logger.Info("story deleted", "story_id", id)
	return nil
}

// Import reads an export file and creates a session on the story it carries.
func (m *Manager) Import(ctx context.Context, r io.Reader) (*Session, error) {
	s, err := store.Import(r)
	if err != nil {
		return nil, err
	}
	return m.Create(ctx, s)
}

// Export writes the story with the given id as a portable file.
func (m *Manager) Export(ctx context.Context, id string, w io.Writer) error {
	sess, err := m.Open(ctx, id)
	if err != nil {
		return err
	}
	return store.Export(w, sess.Snapshot(), m.svc.now())
}

// Flush writes every open session with unsaved changes.
func (m *Manager) Flush(ctx context.Context) error {
	var errs []error
	for _, sess := range m.open() {
		if err := sess.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every open session.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, sess := range m.open() {
		if err := sess.autosave.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	return errors.Join(errs...)
}

func (m *Manager) open() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}
