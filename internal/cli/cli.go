// Package cli is the testcov command line: it loads the host config, wires
// plugins into a cobra command and maps session outcomes to exit codes.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/testcov/internal/application"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/config"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/gotool"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/watcher"
	"github.com/felixgeelhaar/testcov/internal/options"
	"github.com/felixgeelhaar/testcov/internal/pathutil"
	"github.com/felixgeelhaar/testcov/internal/plugin"
	"github.com/felixgeelhaar/testcov/internal/plugin/cov"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitTestsFailed = 1
	ExitConfig      = 2
	ExitReport      = 3
)

const (
	envWorker   = "TESTCOV_WORKER"
	envLogLevel = "TESTCOV_LOG_LEVEL"
)

// Seams for tests.
var (
	newPlugins = func() []plugin.Plugin { return []plugin.Plugin{cov.New()} }
	newRunner  = func(dir string) application.TestRunner { return gotool.Runner{Dir: dir} }
	newWatcher = func(opts ...watcher.Option) (application.FileWatcher, error) { return watcher.New(opts...) }
	hostLoader = func() application.HostConfigLoader { return config.Loader{} }
	environ    = os.Environ
)

type hostFlags struct {
	config   string
	worker   bool
	logLevel string
	watch    bool
	run      string
	verbose  bool
}

// Run executes testcov with args (without the program name) and returns the
// process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	_ = setupLogging(stderr, "")

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitConfig
	}

	hostCfg, err := loadHostConfig(hostLoader(), args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitConfig
	}
	env := options.NewEnv(environ()).Overlay(options.EnvFromMap(hostCfg.Env))
	if !isInit(args) {
		args = append(append([]string(nil), hostCfg.Args...), args...)
	}

	svc := &application.Service{
		Plugins: plugin.NewManager(withPlugins(newPlugins())...),
		Tests:   newRunner(wd),
		Out:     stdout,
		ErrOut:  stderr,
		WorkDir: wd,
	}

	root, err := newRootCommand(svc, env, hostCfg, wd)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		// go test already printed its failures.
		if !errors.Is(err, application.ErrTestsFailed) || errors.Is(err, application.ErrReport) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitCode(err)
	}
	return ExitOK
}

func newRootCommand(svc *application.Service, env options.Env, hostCfg application.HostConfig, wd string) (*cobra.Command, error) {
	var hf hostFlags
	worker, _ := strconv.ParseBool(env.Get(envWorker, "false"))

	root := &cobra.Command{
		Use:           "testcov [flags] [packages]",
		Short:         "Run go test with coverage plugins",
		Long:          "testcov runs go test for the given packages and lets plugins such as coverage measurement hook into the run.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd.ErrOrStderr(), hf.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			packages := args
			if len(packages) == 0 {
				packages = hostCfg.Packages
			}
			opts := application.SessionOptions{
				Flags:    cmd.Flags(),
				Env:      env,
				Worker:   hf.worker,
				Packages: packages,
				Run:      hf.run,
				Verbose:  hf.verbose,
			}
			if hf.watch {
				return runWatch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), svc, wd, opts, hf.config)
			}
			return svc.RunSession(cmd.Context(), opts)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Mark(err, application.ErrConfig)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&hf.config, "config", config.DefaultHostConfig, "Host config file (YAML, or TOML by extension)")
	pf.StringVar(&hf.logLevel, "log-level", env.Get(envLogLevel, "warn"), "Log level: debug, info, warn, error ["+envLogLevel+"]")

	fs := root.Flags()
	fs.BoolVar(&hf.worker, "worker", worker, "Run as a distributed worker; coverage stays off ["+envWorker+"]")
	fs.BoolVar(&hf.watch, "watch", false, "Re-run the session whenever Go sources change")
	fs.StringVar(&hf.run, "run", "", "Run only tests matching the regular expression")
	fs.BoolVarP(&hf.verbose, "verbose", "v", false, "Verbose go test output")
	if err := svc.RegisterOptions(fs, env); err != nil {
		return nil, err
	}

	root.AddCommand(newInitCommand())
	return root, nil
}

func newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter host config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			return writeConfigFile(path, defaultHostConfig(), cmd.OutOrStdout(), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func defaultHostConfig() application.HostConfig {
	return application.HostConfig{
		Args:     []string{"--with-cov", "--cov-report=term-missing"},
		Env:      map[string]string{"NOSE_COV_CONFIG": config.DefaultCoverageRC},
		Packages: []string{"./..."},
	}
}

func writeConfigFile(path string, cfg application.HostConfig, stdout io.Writer, force bool) error {
	if path == "-" {
		return config.Write(stdout, cfg)
	}
	path, err := pathutil.ValidatePath(path)
	if err != nil {
		return errors.Mark(err, application.ErrConfig)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Mark(errors.Newf("config %s already exists", path), application.ErrConfig)
		}
	}
	// #nosec G304 -- path was cleaned above
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := config.Write(file, cfg); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}

// loadHostConfig finds --config among args without failing on flags only
// the full command knows about.
func loadHostConfig(loader application.HostConfigLoader, args []string) (application.HostConfig, error) {
	fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.String("config", config.DefaultHostConfig, "")
	fs.BoolP("help", "h", false, "")
	fs.BoolP("verbose", "v", false, "")
	_ = fs.Parse(args)

	found, err := loader.Find(*path)
	if err != nil {
		return application.HostConfig{}, errors.Mark(err, application.ErrConfig)
	}
	if found == "" {
		if fs.Changed("config") && !isInit(args) {
			return application.HostConfig{}, errors.Mark(errors.Newf("config %s not found", *path), application.ErrConfig)
		}
		return application.HostConfig{}, nil
	}
	cfg, err := loader.Load(found)
	if err != nil {
		return application.HostConfig{}, errors.Mark(err, application.ErrConfig)
	}
	log.Debug("host config loaded", "path", found, "args", cfg.Args)
	return cfg, nil
}

// isInit reports whether args select the init subcommand.
func isInit(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "init" {
			return true
		}
	}
	return false
}

func setupLogging(w io.Writer, level string) error {
	logger := log.NewWithOptions(w, log.Options{Prefix: "testcov"})
	lvl := log.WarnLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "--log-level %q", level), application.ErrConfig)
		}
		lvl = parsed
	}
	logger.SetLevel(lvl)
	log.SetDefault(logger)
	return nil
}

func runWatch(ctx context.Context, stdout, stderr io.Writer, svc *application.Service, root string, opts application.SessionOptions, hostConfig string) error {
	coverageRC := config.DefaultCoverageRC
	if f := opts.Flags.Lookup("cov-config"); f != nil {
		coverageRC = f.Value.String()
	}
	w, err := newWatcher(
		watcher.WithFiles(coverageRC, hostConfig),
		watcher.WithSkipDirs("htmlcov"),
	)
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	fmt.Fprintln(stdout, "Watching for file changes... (Ctrl+C to stop)")
	callback := func(run int, runErr error) {
		fmt.Fprintf(stdout, "\n--- Run #%d at %s ---\n", run, time.Now().Format("15:04:05"))
		if runErr != nil {
			fmt.Fprintf(stderr, "Run failed: %v\n", runErr)
		}
	}

	err = svc.Watch(ctx, root, opts, w, callback)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stdout, "\nStopping watch mode...")
		return nil
	}
	return err
}

func withPlugins(ps []plugin.Plugin) []plugin.ManagerOption {
	out := make([]plugin.ManagerOption, 0, len(ps))
	for _, p := range ps {
		out = append(out, plugin.WithPlugin(p))
	}
	return out
}

// exitCode maps an error to the process status: configuration problems win
// over failing tests, which win over report failures.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, application.ErrConfig):
		return ExitConfig
	case errors.Is(err, application.ErrTestsFailed):
		return ExitTestsFailed
	default:
		return ExitReport
	}
}
