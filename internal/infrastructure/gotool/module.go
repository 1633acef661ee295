package gotool

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Module identifies the Go module tests run in.
type Module struct {
	Root string
	Path string
}

// ModuleResolver resolves the module of Dir (the working directory when empty)
// through the go command, caching the first answer.
type ModuleResolver struct {
	Dir string
	// Output overrides command execution (for testing).
	Output func(ctx context.Context, dir string, args ...string) (string, error)

	once   sync.Once
	module Module
	err    error
}

// Resolve returns the module root and path.
func (m *ModuleResolver) Resolve(ctx context.Context) (Module, error) {
	m.once.Do(func() {
		m.module, m.err = m.resolve(ctx)
	})
	return m.module, m.err
}

func (m *ModuleResolver) resolve(ctx context.Context) (Module, error) {
	dir := m.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Module{}, err
		}
		dir = wd
	}

	root := ""
	if gomod, err := m.output(ctx, dir, "env", "GOMOD"); err == nil && gomod != "" && gomod != os.DevNull {
		root = filepath.Dir(gomod)
	} else {
		found, err := findModuleRoot(dir)
		if err != nil {
			return Module{}, err
		}
		root = found
	}

	path, err := m.output(ctx, root, "list", "-m")
	if err != nil {
		return Module{}, err
	}
	// go list -m prints one line per module inside a workspace; the first is ours.
	if idx := strings.IndexByte(path, '\n'); idx >= 0 {
		path = strings.TrimSpace(path[:idx])
	}
	if path == "" {
		return Module{}, errors.New("module path not found")
	}
	return Module{Root: root, Path: path}, nil
}

func (m *ModuleResolver) output(ctx context.Context, dir string, args ...string) (string, error) {
	if m.Output != nil {
		return m.Output(ctx, dir, args...)
	}
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "go %s", strings.Join(args, " "))
	}
	return strings.TrimSpace(out.String()), nil
}

// findModuleRoot walks up from dir looking for go.mod or go.work.
func findModuleRoot(dir string) (string, error) {
	for {
		for _, marker := range []string{"go.mod", "go.work"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("module root not found: no go.mod or go.work in current or parent directories")
		}
		dir = parent
	}
}
