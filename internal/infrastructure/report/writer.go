package report

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

// Options controls rendering. Relative output locations resolve against Root.
type Options struct {
	Root        string
	Precision   int
	ShowMissing bool
	SkipCovered bool
	HTMLDir     string
	HTMLTitle   string
	XMLOutput   string
	AnnotateDir string
}

// Writer renders coverage results.
type Writer struct {
	// Now overrides the clock used for timestamps (for testing).
	Now func() time.Time
	// Color forces terminal colors on or off; nil detects from the stream.
	Color *bool
}

// WriteFile renders a file-producing report kind and returns the notice
// that tells the user where it went.
func (wr Writer) WriteFile(kind domain.ReportKind, res domain.Result, opts Options) (string, error) {
	switch kind {
	case domain.ReportAnnotate:
		return wr.writeAnnotate(res, opts)
	case domain.ReportHTML:
		return wr.writeHTML(res, opts)
	case domain.ReportXML:
		return wr.writeXML(res, opts)
	default:
		return "", errors.Newf("report %s does not produce files", kind)
	}
}

func (wr Writer) now() time.Time {
	if wr.Now != nil {
		return wr.Now()
	}
	return time.Now()
}

func (wr Writer) colorEnabled(w io.Writer) bool {
	if wr.Color != nil {
		return *wr.Color
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}
