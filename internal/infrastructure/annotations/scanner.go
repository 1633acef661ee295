// Package annotations reads source files to refine a coverage result: a
// pragma near the top excludes a file, and lines holding nothing but closing
// brackets are not reported as missed.
package annotations

import (
	"bufio"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

// Pragma in a comment near the top of a file excludes the whole file from
// coverage results.
const Pragma = "testcov:ignore"

// DefaultHeaderLines is how many leading lines are searched for the pragma.
const DefaultHeaderLines = 20

type Scanner struct {
	// HeaderLines overrides DefaultHeaderLines when positive.
	HeaderLines int
}

// Source is what a scan learned about one file.
type Source struct {
	Ignored bool
	// Closers are the lines holding only closing braces or parentheses.
	Closers map[int]bool
}

// Scan reads the file at path. A missing file yields an empty Source.
func (s Scanner) Scan(path string) (Source, error) {
	src := Source{Closers: make(map[int]bool)}
	// #nosec G304 -- path comes from a resolved coverage profile
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return src, nil
		}
		return src, errors.Wrapf(err, "scan %s", path)
	}
	defer f.Close()

	limit := s.HeaderLines
	if limit <= 0 {
		limit = DefaultHeaderLines
	}
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if n <= limit && hasPragma(line) {
			src.Ignored = true
			return src, nil
		}
		if closerOnly(line) {
			src.Closers[n] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return src, errors.Wrapf(err, "scan %s", path)
	}
	return src, nil
}

// Ignored reports whether the file at path carries the pragma in its header.
func (s Scanner) Ignored(path string) (bool, error) {
	src, err := s.Scan(path)
	return src.Ignored, err
}

// Filter drops every file of res that carries the pragma and clears the
// status of closer-only lines in the rest. Files without a resolved path are
// kept as they are.
func (s Scanner) Filter(res domain.Result) (domain.Result, error) {
	out := domain.Result{Mode: res.Mode, Files: make([]domain.FileCoverage, 0, len(res.Files))}
	for _, f := range res.Files {
		if f.Path == "" {
			out.Files = append(out.Files, f)
			continue
		}
		src, err := s.Scan(f.Path)
		if err != nil {
			return res, err
		}
		if src.Ignored {
			continue
		}
		out.Files = append(out.Files, src.trim(f))
	}
	return out, nil
}

// trim returns f without line statuses on closer-only lines. Statement
// counts are unchanged: closing brackets are never statements.
func (src Source) trim(f domain.FileCoverage) domain.FileCoverage {
	if len(src.Closers) == 0 || f.Lines == nil {
		return f
	}
	lines := make(map[int]domain.LineStatus, len(f.Lines))
	for n, status := range f.Lines {
		if !src.Closers[n] {
			lines[n] = status
		}
	}
	f.Lines = lines
	return f
}

func hasPragma(line string) bool {
	idx := strings.Index(line, "//")
	return idx >= 0 && strings.Contains(line[idx:], Pragma)
}

// closerOnly matches "}", "})", "}," and similar.
func closerOnly(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "}") && strings.Trim(trimmed, "}),;") == ""
}
