package plugin

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/testcov/internal/options"
)

// Manager dispatches lifecycle hooks to registered plugins in score order.
type Manager struct {
	plugins []Plugin
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPlugin registers a plugin.
func WithPlugin(p Plugin) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.plugins = append(m.plugins, p)
		}
	}
}

// NewManager creates a Manager. Plugins are ordered by descending score;
// equal scores keep registration order.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	sort.SliceStable(m.plugins, func(i, j int) bool {
		return scoreOf(m.plugins[i]) > scoreOf(m.plugins[j])
	})
	return m
}

// Plugins returns the registered plugins in dispatch order.
func (m *Manager) Plugins() []Plugin {
	out := make([]Plugin, len(m.plugins))
	copy(out, m.plugins)
	return out
}

// Options lets every plugin register its flags.
func (m *Manager) Options(fs *pflag.FlagSet, env options.Env) error {
	for _, p := range m.plugins {
		if err := p.Options(fs, env); err != nil {
			return errors.Wrapf(err, "plugin %s", p.Name())
		}
	}
	return nil
}

// Configure resets the session and configures every plugin.
func (m *Manager) Configure(fs *pflag.FlagSet, cfg Config, s *Session) error {
	s.Reset()
	for _, p := range m.plugins {
		if err := p.Configure(fs, cfg, s); err != nil {
			return errors.Wrapf(err, "plugin %s", p.Name())
		}
		log.Debug("plugin configured", "plugin", p.Name(), "enabled", p.Enabled())
	}
	return nil
}

// Begin calls Begin on every enabled plugin.
func (m *Manager) Begin(ctx context.Context, s *Session) error {
	for _, p := range m.enabled() {
		if err := p.Begin(ctx, s); err != nil {
			return errors.Wrapf(err, "plugin %s", p.Name())
		}
	}
	return nil
}

// Report calls Report on every enabled plugin. All plugins get a chance to
// report; the errors are combined.
func (m *Manager) Report(ctx context.Context, s *Session, w io.Writer) error {
	var errs []error
	for _, p := range m.enabled() {
		if err := p.Report(ctx, s, w); err != nil {
			errs = append(errs, errors.Wrapf(err, "plugin %s", p.Name()))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) enabled() []Plugin {
	out := make([]Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}
