// Package engine drives coverage measurement for one test session: it
// prepares the data directory and go test flags, then collects the written
// profiles and renders the requested reports.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/testcov/internal/domain"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/annotations"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/config"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/coverprofile"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/gotool"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/lock"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/paths"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/report"
)

// Controller is the measurement lifecycle a coverage plugin drives.
type Controller interface {
	Start(ctx context.Context) error
	Finish(ctx context.Context) error
	Summary(w io.Writer) error
	TestFlags() []string
}

// ModuleResolver locates the module under test.
type ModuleResolver interface {
	Resolve(ctx context.Context) (gotool.Module, error)
}

// Option configures a Central.
type Option func(*Central)

// WithModule overrides module discovery.
func WithModule(r ModuleResolver) Option {
	return func(c *Central) { c.module = r }
}

// WithWriter overrides the report writer.
func WithWriter(w report.Writer) Option {
	return func(c *Central) { c.writer = w }
}

// WithWorkDir sets the directory relative config paths resolve against.
func WithWorkDir(dir string) Option {
	return func(c *Central) { c.workDir = dir }
}

// WithGoVersion overrides the toolchain version shown in the summary header.
func WithGoVersion(v string) Option {
	return func(c *Central) { c.goVersion = v }
}

// Central measures coverage of a whole module in a single data directory.
type Central struct {
	sources    []string
	reports    []domain.ReportKind
	configPath string

	module    ModuleResolver
	writer    report.Writer
	workDir   string
	goVersion string

	mu       sync.Mutex
	rc       config.CoverageRC
	root     string
	profile  string
	flags    []string
	lock     *lock.Lock
	result   domain.Result
	started  bool
	finished bool
}

var (
	_ Controller     = (*Central)(nil)
	_ ModuleResolver = (*gotool.ModuleResolver)(nil)
)

// New creates a controller for the given sources, report kinds and coverage
// config file.
func New(sources []string, reports []domain.ReportKind, configPath string, opts ...Option) *Central {
	c := &Central{
		sources:    append([]string(nil), sources...),
		reports:    append([]domain.ReportKind(nil), reports...),
		configPath: configPath,
		goVersion:  runtime.Version(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.module == nil {
		c.module = &gotool.ModuleResolver{Dir: c.workDir}
	}
	return c
}

// Start loads the coverage config, locks and removes the previous data file
// and computes the go test flags. Only the configured data file is touched.
func (c *Central) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("coverage already started")
	}

	cfgPath := c.configPath
	if cfgPath == "" {
		cfgPath = config.DefaultCoverageRC
	}
	rc, err := config.LoadCoverageRC(c.resolveWork(cfgPath), cfgPath != config.DefaultCoverageRC)
	if err != nil {
		return err
	}

	mod, err := c.module.Resolve(ctx)
	if err != nil {
		return errors.Wrap(err, "resolve module")
	}

	profile := rc.DataFile
	if !filepath.IsAbs(profile) {
		profile = filepath.Join(mod.Root, profile)
	}
	if err := os.MkdirAll(filepath.Dir(profile), 0o750); err != nil {
		return errors.Wrapf(err, "create data directory for %s", profile)
	}
	l, err := lock.Acquire(profile)
	if err != nil {
		return errors.Wrapf(err, "lock %s", profile)
	}
	if err := eraseProfile(profile); err != nil {
		_ = l.Release()
		return errors.Wrapf(err, "erase %s", profile)
	}

	c.rc = rc
	c.root = mod.Root
	c.profile = profile
	c.lock = l
	c.flags = []string{
		"-covermode=" + rc.Mode,
		"-coverpkg=" + gotool.CoverPkg(mod.Root, c.sources),
		"-coverprofile=" + profile,
	}
	c.started = true
	log.Debug("coverage started", "root", mod.Root, "data", profile, "flags", c.flags)
	return nil
}

// TestFlags returns the go test flags computed by Start.
func (c *Central) TestFlags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.flags...)
}

// Finish reads the data file written during the run and releases the lock.
// A missing data file yields an empty result. Calling it again is a no-op.
func (c *Central) Finish(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.New("coverage not started")
	}
	if c.finished {
		return nil
	}
	c.finished = true
	defer func() {
		if err := c.lock.Release(); err != nil {
			log.Warn("release data lock", "data", c.profile, "err", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	var files []string
	switch _, err := os.Stat(c.profile); {
	case err == nil:
		files = append(files, c.profile)
	case errors.Is(err, os.ErrNotExist):
		log.Debug("no coverage data written", "data", c.profile)
	default:
		return errors.Wrap(err, "read coverage data")
	}
	profiles, err := coverprofile.Parser{}.ParseAll(files)
	if err != nil {
		return errors.Wrap(err, "read coverage data")
	}

	mod, err := c.module.Resolve(ctx)
	if err != nil {
		return errors.Wrap(err, "resolve module")
	}
	res := paths.NewGoModuleNormalizer(mod.Root, mod.Path).Resolve(coverprofile.Result(profiles))
	res, err = c.filter(res)
	if err != nil {
		return err
	}
	res, err = annotations.Scanner{}.Filter(res)
	if err != nil {
		return errors.Wrap(err, "scan pragmas")
	}
	if res.Mode == "" {
		res.Mode = c.rc.Mode
	}
	c.result = res
	log.Debug("coverage finished", "data", c.profile, "files", len(res.Files))
	return nil
}

func (c *Central) filter(res domain.Result) (domain.Result, error) {
	omit, err := paths.NewMatcher(c.rc.OmitPatterns())
	if err != nil {
		return res, errors.Wrap(err, "omit pattern")
	}
	include, err := paths.NewMatcher(c.rc.Include)
	if err != nil {
		return res, errors.Wrap(err, "include pattern")
	}
	return res.Filter(func(f domain.FileCoverage) bool {
		if omit.MatchFile(f) {
			return false
		}
		return include.Empty() || include.MatchFile(f)
	}), nil
}

// Result returns the measurement collected by Finish.
func (c *Central) Result() domain.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Summary writes the header, the terminal table and the file reports.
func (c *Central) Summary(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished {
		return errors.New("coverage not finished")
	}

	header := fmt.Sprintf("---------- coverage: platform %s/%s, %s ----------\n", runtime.GOOS, runtime.GOARCH, c.goVersion)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	opts := c.reportOptions()
	terminal, files := splitKinds(c.reports)
	if len(terminal) > 0 {
		showMissing := c.rc.ShowMissing
		for _, k := range terminal {
			if k == domain.ReportTermMissing {
				showMissing = true
			}
		}
		if err := c.writer.WriteTerminal(w, c.result, opts, showMissing); err != nil {
			return err
		}
	}
	if len(files) == 0 {
		return nil
	}

	notices := make([]string, len(files))
	g := new(errgroup.Group)
	for i, kind := range files {
		g.Go(func() error {
			notice, err := c.writer.WriteFile(kind, c.result, opts)
			if err != nil {
				return errors.Wrapf(err, "%s report", kind)
			}
			notices[i] = notice
			return nil
		})
	}
	err := g.Wait()
	for _, n := range notices {
		if n == "" {
			continue
		}
		if _, werr := io.WriteString(w, n+"\n"); werr != nil {
			return werr
		}
	}
	return err
}

func (c *Central) reportOptions() report.Options {
	return report.Options{
		Root:        c.root,
		Precision:   c.rc.Precision,
		ShowMissing: c.rc.ShowMissing,
		SkipCovered: c.rc.SkipCovered,
		HTMLDir:     c.rc.HTMLDir,
		HTMLTitle:   c.rc.HTMLTitle,
		XMLOutput:   c.rc.XMLOutput,
		AnnotateDir: c.rc.AnnotateDir,
	}
}

func (c *Central) resolveWork(path string) string {
	if filepath.IsAbs(path) || c.workDir == "" {
		return path
	}
	return filepath.Join(c.workDir, path)
}

// splitKinds separates terminal kinds from file kinds, dropping duplicates
// and keeping request order.
func splitKinds(kinds []domain.ReportKind) (terminal, files []domain.ReportKind) {
	seen := make(map[domain.ReportKind]struct{}, len(kinds))
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if k.IsTerminal() {
			terminal = append(terminal, k)
		} else {
			files = append(files, k)
		}
	}
	return terminal, files
}

func eraseProfile(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
