// Package cargoedit edits Cargo manifests in place: adding, removing, and
// upgrading dependencies, and bumping package versions, while preserving the
// formatting of everything it does not touch.
package cargoedit

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/cassaundra/cargo-edit/lockfile"
	"github.com/cassaundra/cargo-edit/registry"
)

// DefaultConcurrency caps parallel registry lookups during an upgrade.
const DefaultConcurrency = 5

// GitResolver checks that a git source and reference exist before they are
// written into a manifest. A nil resolver skips the check.
type GitResolver interface {
	Verify(ctx context.Context, url, ref string) error
}

// Option configures an Editor.
type Option func(*editorConfig) error

// editorConfig holds all editing configuration.
type editorConfig struct {
	source       registry.Source
	gitResolver  GitResolver
	lockResolver lockfile.Resolver
	concurrency  int

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// Editor applies manifest edits. Construct with New; the zero value is not
// usable.
type Editor struct {
	cfg editorConfig
}

// WithRegistry sets the version source consulted for registry dependencies.
func WithRegistry(src registry.Source) Option {
	return func(c *editorConfig) error {
		if src == nil {
			return errors.New("registry source must not be nil")
		}
		c.source = src
		return nil
	}
}

// WithGitResolver sets the resolver that verifies git sources on add.
func WithGitResolver(r GitResolver) Option {
	return func(c *editorConfig) error {
		c.gitResolver = r
		return nil
	}
}

// WithLockResolver sets the resolver invoked to regenerate the lock file
// after structural edits such as add and remove. Without one, the lock file
// is left for the package manager's next run.
func WithLockResolver(r lockfile.Resolver) Option {
	return func(c *editorConfig) error {
		c.lockResolver = r
		return nil
	}
}

// WithConcurrency bounds parallel registry lookups. Zero or negative values
// fall back to the default.
func WithConcurrency(n int) Option {
	return func(c *editorConfig) error {
		if n > 0 {
			c.concurrency = n
		} else {
			c.concurrency = DefaultConcurrency
		}
		return nil
	}
}

// WithLogger sets the structured logger. A nil logger keeps the editor
// silent.
func WithLogger(logger *slog.Logger) Option {
	return func(c *editorConfig) error {
		c.logger = logger
		return nil
	}
}

// New creates an Editor. Without WithRegistry, versions come from the
// crates.io sparse index.
func New(opts ...Option) (*Editor, error) {
	cfg := editorConfig{
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.source == nil {
		cfg.source = registry.NewClient("")
	}
	return &Editor{cfg: cfg}, nil
}

// logger returns the configured logger or a silent one.
func (e *Editor) logger() *slog.Logger {
	if e.cfg.logger != nil {
		return e.cfg.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
