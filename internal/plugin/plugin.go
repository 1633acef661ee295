// Package plugin defines the lifecycle contract between the test host and its
// plugins. The host calls Options during flag setup, Configure after parsing,
// Begin before any test runs and Report after all tests have finished.
package plugin

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/testcov/internal/options"
)

// Plugin is the capability set every runner plugin implements.
type Plugin interface {
	// Name identifies the plugin; it also names its --with-<name> flag.
	Name() string
	// Options registers the plugin's flags, seeding defaults from env.
	Options(fs *pflag.FlagSet, env options.Env) error
	// Configure resolves parsed flags. It runs once per configure pass.
	Configure(fs *pflag.FlagSet, cfg Config, s *Session) error
	// Enabled reports the decision made by the last Configure.
	Enabled() bool
	// Begin runs before any test executes.
	Begin(ctx context.Context, s *Session) error
	// Report runs after every test has finished and writes to w.
	Report(ctx context.Context, s *Session, w io.Writer) error
}

// Scorer is implemented by plugins that care about their position.
// Higher scores run first; plugins without a score get DefaultScore.
type Scorer interface {
	Score() int
}

// DefaultScore is the score of plugins that do not implement Scorer.
const DefaultScore = 100

// Config is the host's view of the current process.
type Config struct {
	// Worker is true in a distributed test sub-process.
	Worker bool
	// WorkDir is the directory tests run from.
	WorkDir string
	// Env is the merged environment the options were seeded from.
	Env options.Env
}

func scoreOf(p Plugin) int {
	if s, ok := p.(Scorer); ok {
		return s.Score()
	}
	return DefaultScore
}
