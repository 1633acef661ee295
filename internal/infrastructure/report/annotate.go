package report

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

// annotateSuffix is appended to the source file name of an annotated copy.
const annotateSuffix = ",cover"

// writeAnnotate writes a copy of every resolvable source file with each line
// prefixed by "> " (executed), "! " (missed) or two spaces.
func (wr Writer) writeAnnotate(res domain.Result, opts Options) (string, error) {
	dir := ""
	if opts.AnnotateDir != "" {
		dir = resolve(opts.Root, opts.AnnotateDir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", err
		}
	}

	for _, f := range res.Files {
		if f.Path == "" {
			continue
		}
		target := f.Path + annotateSuffix
		if dir != "" {
			target = filepath.Join(dir, flatName(f.DisplayName())+annotateSuffix)
		}
		if err := annotateFile(f, target); err != nil {
			return "", err
		}
	}

	if dir == "" {
		return "Coverage annotated source written next to source", nil
	}
	return "Coverage annotated source written to dir " + opts.AnnotateDir, nil
}

func annotateFile(f domain.FileCoverage, target string) error {
	// #nosec G304 -- f.Path was resolved from the module root
	src, err := os.Open(f.Path)
	if err != nil {
		return errors.Wrapf(err, "annotate %s", f.DisplayName())
	}
	defer src.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		prefix := "  "
		switch f.LineStatusAt(lineNo) {
		case domain.LineCovered:
			prefix = "> "
		case domain.LineMissed:
			prefix = "! "
		}
		if _, err := w.WriteString(prefix + scanner.Text() + "\n"); err != nil {
			_ = out.Close()
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		_ = out.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// flatName turns a relative path into a single file name.
func flatName(name string) string {
	name = filepath.ToSlash(name)
	name = strings.TrimPrefix(name, "/")
	return strings.ReplaceAll(name, "/", "_")
}
