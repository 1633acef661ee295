package application

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConfig marks invalid options and unreadable configuration.
	ErrConfig = errors.New("configuration error")
	// ErrTestsFailed marks a test command that ran but reported failures.
	ErrTestsFailed = errors.New("tests failed")
	// ErrReport marks failures while stopping coverage or rendering reports.
	ErrReport = errors.New("report failed")
)

// HostConfig is the host config file: default arguments, environment and packages.
type HostConfig struct {
	Path     string
	Args     []string
	Env      map[string]string
	Packages []string
}

// HostConfigLoader locates and reads the host config file.
type HostConfigLoader interface {
	Load(path string) (HostConfig, error)
	Find(path string) (string, error)
}

// TestOptions describes one invocation of the test command.
type TestOptions struct {
	Packages []string
	// Flags are extra flags contributed by plugins, passed before the packages.
	Flags []string
	// Env is added to the process environment of the test command.
	Env     []string
	Run     string
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// TestRunner executes the tests of a session. It returns an error wrapping
// ErrTestsFailed when tests ran and failed.
type TestRunner interface {
	RunTests(ctx context.Context, opts TestOptions) error
}

// FileWatcher emits a signal each time relevant source files change.
type FileWatcher interface {
	WatchDir(root string) error
	Events(ctx context.Context) <-chan struct{}
	Close() error
}

// WatchCallback is called after every session run in watch mode.
type WatchCallback func(run int, err error)
