package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/ini.v1"

	"github.com/felixgeelhaar/testcov/internal/pathutil"
)

// DefaultCoverageRC is the engine config file read when none is named.
const DefaultCoverageRC = ".coveragerc"

// CoverageRC holds the engine settings read from a .coveragerc file.
type CoverageRC struct {
	// [run]
	Mode     string
	DataFile string
	Omit     []string
	Include  []string

	// [report]
	ReportOmit  []string
	Precision   int
	ShowMissing bool
	SkipCovered bool

	// [html]
	HTMLDir   string
	HTMLTitle string

	// [xml]
	XMLOutput string

	// [annotate]
	AnnotateDir string
}

// DefaultCoverageSettings returns the settings used when no file exists.
func DefaultCoverageSettings() CoverageRC {
	return CoverageRC{
		Mode:      "set",
		DataFile:  ".cover/coverage.out",
		HTMLDir:   "htmlcov",
		HTMLTitle: "Coverage report",
		XMLOutput: "coverage.xml",
	}
}

// LoadCoverageRC reads an INI-format coverage config. A missing file is not an
// error when required is false; the defaults are returned instead.
func LoadCoverageRC(path string, required bool) (CoverageRC, error) {
	rc := DefaultCoverageSettings()

	path, err := pathutil.ValidatePath(path)
	if err != nil {
		return rc, errors.Wrap(err, "coverage config")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return rc, nil
		}
		return rc, errors.Wrapf(err, "coverage config %s", path)
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, path)
	if err != nil {
		return rc, errors.Wrapf(err, "coverage config %s", path)
	}

	run := file.Section("run")
	rc.Mode = run.Key("mode").MustString(rc.Mode)
	rc.DataFile = run.Key("data_file").MustString(rc.DataFile)
	rc.Omit = splitList(run.Key("omit").String())
	rc.Include = splitList(run.Key("include").String())

	report := file.Section("report")
	rc.ReportOmit = splitList(report.Key("omit").String())
	rc.Precision = report.Key("precision").MustInt(rc.Precision)
	rc.ShowMissing = report.Key("show_missing").MustBool(rc.ShowMissing)
	rc.SkipCovered = report.Key("skip_covered").MustBool(rc.SkipCovered)

	html := file.Section("html")
	rc.HTMLDir = html.Key("directory").MustString(rc.HTMLDir)
	rc.HTMLTitle = html.Key("title").MustString(rc.HTMLTitle)

	rc.XMLOutput = file.Section("xml").Key("output").MustString(rc.XMLOutput)
	rc.AnnotateDir = file.Section("annotate").Key("directory").MustString(rc.AnnotateDir)

	if err := rc.Validate(); err != nil {
		return rc, errors.Wrapf(err, "coverage config %s", path)
	}
	return rc, nil
}

// Validate checks values the engine cannot work with.
func (rc CoverageRC) Validate() error {
	switch rc.Mode {
	case "set", "count", "atomic":
	default:
		return errors.Newf("[run] mode must be set, count or atomic, got %q", rc.Mode)
	}
	if rc.Precision < 0 || rc.Precision > 10 {
		return errors.Newf("[report] precision must be between 0 and 10, got %d", rc.Precision)
	}
	return nil
}

// OmitPatterns returns the [run] and [report] omit patterns together.
func (rc CoverageRC) OmitPatterns() []string {
	out := make([]string, 0, len(rc.Omit)+len(rc.ReportOmit))
	out = append(out, rc.Omit...)
	return append(out, rc.ReportOmit...)
}

// splitList reads a coverage.py list value: entries separated by newlines or commas.
func splitList(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
