package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/testcov/internal/domain"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/gotool"
	"github.com/felixgeelhaar/testcov/internal/infrastructure/report"
)

const source = `package m

func A(x int) int {
	if x > 0 {
		return 1
	}
	return 0
}
`

const profile = `mode: set
example.com/m/pkg/a.go:3.19,4.11 1 1
example.com/m/pkg/a.go:4.11,6.3 1 0
example.com/m/pkg/a.go:7.2,7.10 1 1
example.com/m/internal/gen/b.go:3.10,4.2 2 0
`

type staticModule struct {
	mod gotool.Module
	err error
}

func (s staticModule) Resolve(context.Context) (gotool.Module, error) {
	return s.mod, s.err
}

func newModule(t *testing.T) string {
	t.Helper()
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)
	t.Setenv("HOME", cache)
	root := t.TempDir()
	for name, body := range map[string]string{
		"go.mod":            "module example.com/m\n",
		"pkg/a.go":          source,
		"internal/gen/b.go": "package gen\n\nfunc B() {\n}\n",
	} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return root
}

func newCentral(root string, reports []domain.ReportKind, configPath string) *Central {
	off := false
	return New([]string{"."}, reports, configPath,
		WithModule(staticModule{mod: gotool.Module{Root: root, Path: "example.com/m"}}),
		WithWorkDir(root),
		WithGoVersion("go1.test"),
		WithWriter(report.Writer{Color: &off}),
	)
}

func simulateRun(t *testing.T, c *Central) {
	t.Helper()
	require.NoError(t, os.WriteFile(c.profile, []byte(profile), 0o600))
}

func TestStartComputesFlags(t *testing.T) {
	root := newModule(t)
	c := newCentral(root, []domain.ReportKind{domain.ReportTerm}, ".coveragerc")
	require.NoError(t, c.Start(context.Background()))
	defer func() { _ = c.Finish(context.Background()) }()

	assert.Equal(t, []string{
		"-covermode=set",
		"-coverpkg=./...",
		"-coverprofile=" + filepath.Join(root, ".cover", "coverage.out"),
	}, c.TestFlags())
}

func TestStartErasesStaleData(t *testing.T) {
	root := newModule(t)
	stale := filepath.Join(root, ".cover", "coverage.out")
	other := filepath.Join(root, ".cover", "old.out")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("mode: set\n"), 0o600))
	require.NoError(t, os.WriteFile(other, []byte("mode: set\n"), 0o600))

	c := newCentral(root, nil, "")
	require.NoError(t, c.Start(context.Background()))
	defer func() { _ = c.Finish(context.Background()) }()
	assert.NoFileExists(t, stale)
	assert.FileExists(t, other)
}

func TestStartDataFileInModuleRoot(t *testing.T) {
	root := newModule(t)
	rc := "[run]\ndata_file = coverage.out\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".coveragerc"), []byte(rc), 0o600))
	notes := filepath.Join(root, "notes.out")
	require.NoError(t, os.WriteFile(notes, []byte("keep me\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "coverage.out"), []byte("mode: set\n"), 0o600))

	c := newCentral(root, nil, "")
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "-coverprofile="+filepath.Join(root, "coverage.out"), c.TestFlags()[2])
	assert.NoFileExists(t, filepath.Join(root, "coverage.out"))

	simulateRun(t, c)
	require.NoError(t, c.Finish(context.Background()))
	assert.Len(t, c.Result().Files, 2)

	data, err := os.ReadFile(notes)
	require.NoError(t, err)
	assert.Equal(t, "keep me\n", string(data))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{".coveragerc", "go.mod", "pkg", "internal", "notes.out", "coverage.out"}, names)
}

func TestFinishWithoutDataFile(t *testing.T) {
	root := newModule(t)
	c := newCentral(root, nil, "")
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Finish(context.Background()))
	assert.Empty(t, c.Result().Files)
	assert.Equal(t, "set", c.Result().Mode)
}

func TestStartRequiresExplicitConfig(t *testing.T) {
	root := newModule(t)
	c := newCentral(root, nil, "custom.ini")
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom.ini")
}

func TestStartUsesConfig(t *testing.T) {
	root := newModule(t)
	rc := "[run]\nmode = count\ndata_file = .cov/run.data\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "custom.ini"), []byte(rc), 0o600))

	c := newCentral(root, nil, "custom.ini")
	require.NoError(t, c.Start(context.Background()))

	flags := c.TestFlags()
	assert.Equal(t, "-covermode=count", flags[0])
	assert.Equal(t, "-coverprofile="+filepath.Join(root, ".cov", "run.data"), flags[2])

	require.NoError(t, os.WriteFile(filepath.Join(root, ".cov", "run.data"),
		[]byte(strings.Replace(profile, "mode: set", "mode: count", 1)), 0o600))
	require.NoError(t, c.Finish(context.Background()))
	assert.Len(t, c.Result().Files, 2)

	entries, err := os.ReadDir(filepath.Join(root, ".cov"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run.data", entries[0].Name())
}

func TestStartModuleError(t *testing.T) {
	c := New(nil, nil, "", WithModule(staticModule{err: assert.AnError}), WithWorkDir(t.TempDir()))
	err := c.Start(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}

func TestStartTwice(t *testing.T) {
	root := newModule(t)
	c := newCentral(root, nil, "")
	require.NoError(t, c.Start(context.Background()))
	defer func() { _ = c.Finish(context.Background()) }()
	assert.Error(t, c.Start(context.Background()))
}

func TestFinishCollectsAndFilters(t *testing.T) {
	root := newModule(t)
	rc := "[run]\nomit = internal/*\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".coveragerc"), []byte(rc), 0o600))

	c := newCentral(root, nil, ".coveragerc")
	require.NoError(t, c.Start(context.Background()))
	simulateRun(t, c)
	require.NoError(t, c.Finish(context.Background()))
	require.NoError(t, c.Finish(context.Background()), "finish is idempotent")

	res := c.Result()
	require.Len(t, res.Files, 1)
	f := res.Files[0]
	assert.Equal(t, "pkg/a.go", f.RelPath)
	assert.Equal(t, filepath.Join(root, "pkg", "a.go"), f.Path)
	assert.Equal(t, 3, f.Statements)
	assert.Equal(t, 1, f.Missed)
	assert.Equal(t, []int{5}, f.MissedLines(), "the closing brace on line 6 is not a missed line")
}

func TestFinishInclude(t *testing.T) {
	root := newModule(t)
	rc := "[run]\ninclude = internal/*\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".coveragerc"), []byte(rc), 0o600))

	c := newCentral(root, nil, "")
	require.NoError(t, c.Start(context.Background()))
	simulateRun(t, c)
	require.NoError(t, c.Finish(context.Background()))

	res := c.Result()
	require.Len(t, res.Files, 1)
	assert.Equal(t, "internal/gen/b.go", res.Files[0].RelPath)
}

func TestFinishHonorsIgnorePragma(t *testing.T) {
	root := newModule(t)
	gen := filepath.Join(root, "internal", "gen", "b.go")
	require.NoError(t, os.WriteFile(gen, []byte("// testcov:ignore\npackage gen\nfunc B() {\n}\n"), 0o600))

	c := newCentral(root, nil, "")
	require.NoError(t, c.Start(context.Background()))
	simulateRun(t, c)
	require.NoError(t, c.Finish(context.Background()))

	res := c.Result()
	require.Len(t, res.Files, 1)
	assert.Equal(t, "pkg/a.go", res.Files[0].RelPath)
}

func TestFinishBeforeStart(t *testing.T) {
	c := newCentral(t.TempDir(), nil, "")
	assert.Error(t, c.Finish(context.Background()))
}

func TestSummary(t *testing.T) {
	root := newModule(t)
	kinds := []domain.ReportKind{domain.ReportXML, domain.ReportTermMissing, domain.ReportHTML, domain.ReportXML}
	c := newCentral(root, kinds, "")
	require.NoError(t, c.Start(context.Background()))
	simulateRun(t, c)
	require.NoError(t, c.Finish(context.Background()))

	buf := new(bytes.Buffer)
	require.NoError(t, c.Summary(buf))
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Contains(t, lines[0], "---------- coverage: platform ")
	assert.Contains(t, lines[0], "go1.test ----------")
	assert.Contains(t, out, "Missing")
	assert.NotContains(t, out, "5-6")
	for _, line := range lines {
		if strings.HasPrefix(line, "pkg/a.go ") {
			assert.True(t, strings.HasSuffix(line, "   5"), line)
		}
	}

	n := len(lines)
	assert.Equal(t, "Coverage XML written to file coverage.xml", lines[n-2])
	assert.Equal(t, "Coverage HTML written to dir htmlcov", lines[n-1])
	assert.Equal(t, 1, strings.Count(out, "Coverage XML written"))
	assert.FileExists(t, filepath.Join(root, "coverage.xml"))
	assert.FileExists(t, filepath.Join(root, "htmlcov", "index.html"))
}

func TestSummaryWithoutTerminal(t *testing.T) {
	root := newModule(t)
	c := newCentral(root, []domain.ReportKind{domain.ReportAnnotate}, "")
	require.NoError(t, c.Start(context.Background()))
	simulateRun(t, c)
	require.NoError(t, c.Finish(context.Background()))

	buf := new(bytes.Buffer)
	require.NoError(t, c.Summary(buf))
	assert.NotContains(t, buf.String(), "TOTAL")
	assert.Contains(t, buf.String(), "Coverage annotated source written next to source")
	assert.FileExists(t, filepath.Join(root, "pkg", "a.go,cover"))
}

func TestSummaryBeforeFinish(t *testing.T) {
	c := newCentral(t.TempDir(), nil, "")
	assert.Error(t, c.Summary(new(bytes.Buffer)))
}

func TestSplitKinds(t *testing.T) {
	terminal, files := splitKinds([]domain.ReportKind{
		domain.ReportHTML, domain.ReportTerm, domain.ReportHTML, domain.ReportXML, domain.ReportTermMissing,
	})
	assert.Equal(t, []domain.ReportKind{domain.ReportTerm, domain.ReportTermMissing}, terminal)
	assert.Equal(t, []domain.ReportKind{domain.ReportHTML, domain.ReportXML}, files)
}
