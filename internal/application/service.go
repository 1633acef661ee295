package application

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/testcov/internal/options"
	"github.com/felixgeelhaar/testcov/internal/plugin"
)

// Service runs test sessions and drives plugins through their lifecycle.
type Service struct {
	Plugins *plugin.Manager
	Tests   TestRunner
	Out     io.Writer
	ErrOut  io.Writer
	WorkDir string
}

// SessionOptions are the parsed inputs of one session.
type SessionOptions struct {
	Flags    *pflag.FlagSet
	Env      options.Env
	Worker   bool
	Packages []string
	Run      string
	Verbose  bool
}

// RegisterOptions lets every plugin add its flags. Failures are configuration errors.
func (s *Service) RegisterOptions(fs *pflag.FlagSet, env options.Env) error {
	if err := s.Plugins.Options(fs, env); err != nil {
		return errors.Mark(err, ErrConfig)
	}
	return nil
}

// RunSession configures plugins, begins them, runs the tests and reports.
// Reports are produced even when tests fail.
func (s *Service) RunSession(ctx context.Context, opts SessionOptions) error {
	session := plugin.NewSession()
	cfg := plugin.Config{Worker: opts.Worker, WorkDir: s.WorkDir, Env: opts.Env}

	if err := s.Plugins.Configure(opts.Flags, cfg, session); err != nil {
		return errors.Mark(err, ErrConfig)
	}
	if err := s.Plugins.Begin(ctx, session); err != nil {
		return errors.Mark(err, ErrReport)
	}

	packages := opts.Packages
	if len(packages) == 0 {
		packages = []string{"./..."}
	}
	log.Debug("running tests", "packages", packages, "flags", session.TestFlags())
	testErr := s.Tests.RunTests(ctx, TestOptions{
		Packages: packages,
		Flags:    session.TestFlags(),
		Env:      append(opts.Env.Pairs(), session.TestEnv()...),
		Run:      opts.Run,
		Verbose:  opts.Verbose,
		Stdout:   s.Out,
		Stderr:   s.errOut(),
	})
	if testErr != nil {
		log.Debug("test command finished with error", "err", testErr)
	}

	var reportErr error
	if err := s.Plugins.Report(ctx, session, s.Out); err != nil {
		reportErr = errors.Mark(err, ErrReport)
	}
	return errors.Join(testErr, reportErr)
}

func (s *Service) errOut() io.Writer {
	if s.ErrOut != nil {
		return s.ErrOut
	}
	return s.Out
}
