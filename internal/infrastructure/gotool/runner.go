package gotool

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/felixgeelhaar/testcov/internal/application"
)

// Command is one go invocation.
type Command struct {
	Dir    string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Runner runs `go test` for a session.
type Runner struct {
	Dir string
	// Exec overrides command execution (for testing).
	Exec func(ctx context.Context, cmd Command) error
}

var _ application.TestRunner = Runner{}

func (r Runner) RunTests(ctx context.Context, opts application.TestOptions) error {
	args := []string{"test"}
	if opts.Verbose {
		args = append(args, "-v")
	}
	if opts.Run != "" {
		args = append(args, "-run", opts.Run)
	}
	args = append(args, opts.Flags...)
	args = append(args, opts.Packages...)

	execFn := r.Exec
	if execFn == nil {
		execFn = runCommand
	}
	log.Debug("running go", "args", args)
	err := execFn(ctx, Command{
		Dir:    r.Dir,
		Args:   args,
		Env:    opts.Env,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Wrapf(application.ErrTestsFailed, "go test exited with status %d", exitErr.ExitCode())
	}
	return errors.Wrap(err, "go test failed")
}

// CoverPkg converts source locations into a -coverpkg pattern list.
// "." selects the whole module, an existing directory selects its package
// tree, and anything else is taken as an import-path pattern.
func CoverPkg(root string, sources []string) string {
	patterns := make([]string, 0, len(sources))
	seen := make(map[string]struct{})
	for _, src := range sources {
		p := coverPattern(root, src)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		patterns = append(patterns, p)
	}
	if len(patterns) == 0 {
		return "./..."
	}
	return strings.Join(patterns, ",")
}

func coverPattern(root, src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	if strings.HasSuffix(src, "...") {
		return src
	}
	dir := src
	if !filepath.IsAbs(dir) && root != "" {
		dir = filepath.Join(root, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return src
	}
	rel := src
	if root != "" {
		if r, err := filepath.Rel(root, dir); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." {
		return "./..."
	}
	if strings.HasPrefix(rel, "../") {
		return rel + "/..."
	}
	return "./" + strings.TrimPrefix(rel, "./") + "/..."
}

func runCommand(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, "go", c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}
