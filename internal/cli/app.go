// Package cli implements the chapterforge command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/vampirenirmal/chapterforge/internal/agent"
	"github.com/vampirenirmal/chapterforge/internal/api"
	"github.com/vampirenirmal/chapterforge/internal/config"
	"github.com/vampirenirmal/chapterforge/internal/session"
	"github.com/vampirenirmal/chapterforge/internal/store"
)

// App holds what the commands work against. Manager is built from the config file on first use
// unless a caller supplies one.
type App struct {
	ConfigPath string
	Verbose    bool

	// NewLogger builds the process logger once flags are parsed.
	NewLogger func(verbose bool) *slog.Logger

	Config  *config.Config
	Manager *session.Manager
	Hub     *api.Hub
	Logger  *slog.Logger
	Now     func() time.Time

	closers []func(context.Context) error
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	return a.Logger
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// setupLogging installs the logger built from the parsed flags as the default.
func (a *App) setupLogging() {
	if a.NewLogger == nil || a.Logger != nil {
		return
	}
	a.Logger = a.NewLogger(a.Verbose)
	slog.SetDefault(a.Logger)
}

// connect loads the config and wires the gateway, store and session manager.
func (a *App) connect() error {
	if a.Manager != nil {
		return nil
	}

	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	a.Config = cfg
	logger := a.logger()

	client := agent.NewClient(cfg.AI.APIKey,
		agent.WithAPIConfig(agent.Provider(cfg.AI.Provider), cfg.AI.BaseURL, cfg.AI.Model),
		agent.WithRetry(cfg.Limits.MaxRetries),
		agent.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
		agent.WithTimeout(time.Duration(cfg.AI.Timeout)*time.Second),
		agent.WithMaxTokens(cfg.AI.MaxTokens),
		agent.WithLogger(logger.With("component", "client")),
	)

	st, err := store.Open(cfg.Store.Driver, cfg.Paths.Database, cfg.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	a.Hub = api.NewHub(logger)
	a.Manager = session.NewManager(agent.NewGateway(client), st,
		session.WithLimits(cfg.Limits),
		session.WithPersonas(agent.NewPersonas(cfg.Paths.PromptsDir, agent.NewPromptCache())),
		session.WithNotifier(a.Hub),
		session.WithLogger(logger),
	)

	a.closers = append(a.closers,
		func(ctx context.Context) error { a.Hub.Close(); return nil },
		a.Manager.Close,
		func(context.Context) error { return st.Close() },
	)

	logger.Debug("connected",
		"provider", cfg.AI.Provider,
		"model", cfg.AI.Model,
		"store", cfg.Store.Driver)
	return nil
}

// Close flushes open stories and releases the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// open resolves ref to a session. ref is a story id or a case-insensitive title.
func (a *App) open(ctx context.Context, ref string) (*session.Session, error) {
	sess, err := a.Manager.Open(ctx, ref)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	list, lerr := a.Manager.List(ctx)
	if lerr != nil {
		return nil, lerr
	}
	var match []store.Summary
	for _, s := range list {
		if strings.EqualFold(s.Title, ref) || strings.HasPrefix(s.ID, ref) {
			match = append(match, s)
		}
	}
	switch len(match) {
	case 0:
		return nil, fmt.Errorf("story %q: %w", ref, store.ErrNotFound)
	case 1:
		return a.Manager.Open(ctx, match[0].ID)
	default:
		return nil, fmt.Errorf("story %q is ambiguous (%d matches)", ref, len(match))
	}
}

func readInput(in io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(in)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
