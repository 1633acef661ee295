// Package paths maps the file names recorded in coverage profiles to files on
// disk and matches them against omit/include patterns.
package paths

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

// GoModuleNormalizer resolves profile names (module-path/dir/file.go) against
// a module root.
type GoModuleNormalizer struct {
	ModuleRoot string
	ModulePath string
}

// NewGoModuleNormalizer creates a new GoModuleNormalizer.
func NewGoModuleNormalizer(moduleRoot, modulePath string) *GoModuleNormalizer {
	return &GoModuleNormalizer{
		ModuleRoot: moduleRoot,
		ModulePath: modulePath,
	}
}

// NormalizePath converts a profile file name to an absolute path. Names
// outside the module are returned cleaned but otherwise unchanged.
func (n *GoModuleNormalizer) NormalizePath(file string) string {
	clean := filepath.Clean(filepath.FromSlash(file))
	if filepath.IsAbs(clean) {
		return clean
	}
	if n.ModulePath != "" {
		if file == n.ModulePath {
			return filepath.Clean(n.ModuleRoot)
		}
		if strings.HasPrefix(file, n.ModulePath+"/") {
			rel := filepath.FromSlash(strings.TrimPrefix(file, n.ModulePath+"/"))
			return filepath.Join(n.ModuleRoot, rel)
		}
		return clean
	}
	if n.ModuleRoot != "" {
		return filepath.Join(n.ModuleRoot, clean)
	}
	return clean
}

// ToRelativePath converts a normalized path to a slash-separated path
// relative to the module root. Paths outside the root are returned as is.
func (n *GoModuleNormalizer) ToRelativePath(normalized string) string {
	if n.ModuleRoot == "" || !filepath.IsAbs(normalized) {
		return filepath.ToSlash(normalized)
	}
	rel, err := filepath.Rel(n.ModuleRoot, normalized)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(normalized)
	}
	return filepath.ToSlash(rel)
}

// Resolve fills Path and RelPath of every file.
func (n *GoModuleNormalizer) Resolve(result domain.Result) domain.Result {
	out := domain.Result{Mode: result.Mode, Files: make([]domain.FileCoverage, 0, len(result.Files))}
	for _, f := range result.Files {
		abs := n.NormalizePath(f.Name)
		if filepath.IsAbs(abs) {
			f.Path = abs
		}
		f.RelPath = n.ToRelativePath(abs)
		out.Files = append(out.Files, f)
	}
	return out
}

// Matcher matches file names against fnmatch-style patterns, where '*'
// also crosses directory separators.
type Matcher struct {
	globs []glob.Glob
}

// NewMatcher compiles patterns. A leading "./" is ignored.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "./")
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Empty reports whether no pattern was compiled.
func (m *Matcher) Empty() bool { return m == nil || len(m.globs) == 0 }

// Match reports whether any of the candidate names matches any pattern.
func (m *Matcher) Match(names ...string) bool {
	if m == nil {
		return false
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		name = filepath.ToSlash(name)
		for _, g := range m.globs {
			if g.Match(name) {
				return true
			}
		}
	}
	return false
}

// MatchFile matches a file by its module-relative path, absolute path or
// profile name.
func (m *Matcher) MatchFile(f domain.FileCoverage) bool {
	return m.Match(f.RelPath, f.Path, f.Name)
}
