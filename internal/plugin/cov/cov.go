// Package cov is the coverage plugin: it adds the --cov family of flags to
// the host and drives a coverage controller around the test run.
package cov

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/testcov/internal/domain"
	"github.com/felixgeelhaar/testcov/internal/engine"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/config"
	"github.com/felixgeelhaar/testcov/internal/options"
	"github.com/felixgeelhaar/testcov/internal/plugin"
)

// Name is the plugin name, also the session activation key.
const Name = "cov"

// Score places the plugin ahead of plugins with the default score.
const Score = 200

const (
	envSources = plugin.EnvPrefix + "COV"
	envReports = plugin.EnvPrefix + "COV_REPORT"
	envConfig  = plugin.EnvPrefix + "COV_CONFIG"
)

var (
	// ErrNotStarted is returned by Report when Begin never ran.
	ErrNotStarted = errors.New("coverage: report called before begin")
	// ErrAlreadyStarted is returned by a second Begin in one session.
	ErrAlreadyStarted = errors.New("coverage: begin called twice")
)

// State is the lifecycle position of the plugin.
type State int

const (
	Unconfigured State = iota
	Configured
	Running
	Reported
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Reported:
		return "reported"
	default:
		return "unconfigured"
	}
}

// Settings is the resolved configuration handed to the controller.
type Settings struct {
	Sources    []string
	Reports    []domain.ReportKind
	ConfigPath string
}

// ControllerFactory builds a coverage controller from resolved settings.
type ControllerFactory func(s Settings, cfg plugin.Config) engine.Controller

// Cov implements plugin.Plugin.
type Cov struct {
	// NewController overrides the controller factory (for testing).
	NewController ControllerFactory

	enabler    *plugin.Enabler
	sources    *options.Paths
	reports    *options.Choice
	configPath string

	cfg      plugin.Config
	settings Settings
	state    State
	ctrl     engine.Controller
}

var (
	_ plugin.Plugin = (*Cov)(nil)
	_ plugin.Scorer = (*Cov)(nil)
)

// New creates the coverage plugin.
func New() *Cov {
	return &Cov{enabler: plugin.NewEnabler(Name)}
}

func (c *Cov) Name() string { return Name }

func (c *Cov) Score() int { return Score }

// State returns the current lifecycle state.
func (c *Cov) State() State { return c.state }

// Settings returns the configuration resolved by the last Configure.
func (c *Cov) Settings() Settings { return c.settings }

// Options registers --with-cov, --cov, --cov-report and --cov-config. Env
// values become defaults; an invalid NOSE_COV_REPORT is an error.
func (c *Cov) Options(fs *pflag.FlagSet, env options.Env) error {
	c.enabler.Register(fs, env, "Turn on coverage reporting")

	c.sources = &options.Paths{}
	if raw, ok := env.Lookup(envSources); ok && raw != "" {
		c.sources.Seed(raw)
	}
	fs.Var(c.sources, "cov",
		"Measure coverage for filesystem path (multi-allowed; given flags replace the env default) ["+envSources+"]")

	c.reports = options.NewChoice("--cov-report", domain.ReportKindNames())
	if raw, ok := env.Lookup(envReports); ok {
		if err := c.reports.Seed(raw); err != nil {
			return errors.Wrapf(err, "%s", envReports)
		}
	}
	fs.Var(c.reports, "cov-report",
		"Generate selected reports, available types: term, term-missing, annotate, html, xml (multi-allowed; given flags replace the env default) ["+envReports+"]")

	fs.StringVar(&c.configPath, "cov-config", env.Get(envConfig, config.DefaultCoverageRC),
		"Config file for coverage, default: .coveragerc ["+envConfig+"]")

	log.Debug("cov options", "sources", c.sources.Values(), "reports", c.reports.Values())
	return nil
}

// Configure decides whether coverage runs in this process. Worker processes
// never measure.
func (c *Cov) Configure(_ *pflag.FlagSet, cfg plugin.Config, s *plugin.Session) error {
	if c.sources == nil || c.reports == nil {
		return errors.New("coverage: configure called before options")
	}
	s.Deactivate(Name)
	c.enabler.Configure()
	c.cfg = cfg
	c.ctrl = nil
	c.state = Configured

	if !c.enabler.Enabled() || cfg.Worker {
		c.enabler.Disable()
		c.settings = Settings{}
		log.Debug("cov configure", "enabled", false, "worker", cfg.Worker)
		return nil
	}

	sources := c.sources.Values()
	if len(sources) == 0 {
		sources = []string{"."}
	}
	names := c.reports.Values()
	if len(names) == 0 {
		names = []string{domain.ReportTerm.String()}
	}
	kinds, err := domain.ParseReportKinds(names)
	if err != nil {
		return err
	}

	c.settings = Settings{Sources: sources, Reports: kinds, ConfigPath: c.configPath}
	s.Activate(Name)
	log.Debug("cov configure", "enabled", true, "sources", sources, "reports", names, "config", c.configPath)
	return nil
}

func (c *Cov) Enabled() bool { return c.enabler.Enabled() }

// Begin starts the controller and hands its go test flags to the session.
func (c *Cov) Begin(ctx context.Context, s *plugin.Session) error {
	if c.state == Running || c.ctrl != nil {
		return ErrAlreadyStarted
	}
	factory := c.NewController
	if factory == nil {
		factory = defaultController
	}
	ctrl := factory(c.settings, c.cfg)
	if err := ctrl.Start(ctx); err != nil {
		return errors.Wrap(err, "start coverage")
	}
	c.ctrl = ctrl
	c.state = Running
	s.AddTestFlags(ctrl.TestFlags()...)
	log.Debug("cov begin", "flags", ctrl.TestFlags())
	return nil
}

// Report stops collection and writes the requested reports to w.
func (c *Cov) Report(ctx context.Context, _ *plugin.Session, w io.Writer) error {
	if c.ctrl == nil {
		return ErrNotStarted
	}
	c.state = Reported
	if err := c.ctrl.Finish(ctx); err != nil {
		return errors.Wrap(err, "stop coverage")
	}
	log.Debug("cov report", "reports", c.settings.Reports)
	return c.ctrl.Summary(w)
}

func defaultController(s Settings, cfg plugin.Config) engine.Controller {
	return engine.New(s.Sources, s.Reports, s.ConfigPath, engine.WithWorkDir(cfg.WorkDir))
}
