package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// autosaver coalesces bursts of changes into one write after delay of quiet.
type autosaver struct {
	mu     sync.Mutex
	saveMu sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	dirty  bool
	closed bool
	save   func(ctx context.Context) error
	logger *slog.Logger
}

func newAutosaver(delay time.Duration, save func(ctx context.Context) error, logger *slog.Logger) *autosaver {
	return &autosaver{
		delay:  delay,
		save:   save,
		logger: logger,
	}
}

// Schedule marks the state dirty and (re)starts the quiet window.
func (a *autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.dirty = true
	if a.timer == nil {
		a.timer = time.AfterFunc(a.delay, a.fire)
		return
	}
	a.timer.Reset(a.delay)
}

func (a *autosaver) fire() {
	if err := a.Flush(context.Background()); err != nil {
		a.logger.Warn("autosave failed", "error", err)
	}
}

// Flush writes immediately if anything changed since the last write.
func (a *autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	dirty := a.dirty
	a.dirty = false
	a.mu.Unlock()

	if !dirty {
		return nil
	}

	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	if err := a.save(ctx); err != nil {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
		return err
	}
	return nil
}

// Close flushes and stops accepting new schedules.
func (a *autosaver) Close(ctx context.Context) error {
	err := a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	return err
}

// Discard drops pending changes and stops the timer.
func (a *autosaver) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.dirty = false
	if a.timer != nil {
		a.timer.Stop()
	}
}
