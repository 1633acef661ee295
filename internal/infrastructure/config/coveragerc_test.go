package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadCoverageRC(t *testing.T) {
	content := `[run]
mode = atomic
data_file = build/cover.out
omit =
    */mocks/*
    *_gen.go
include = ./internal/*

[report]
omit = cmd/*, tools/*
precision = 2
show_missing = true
skip_covered = yes

[html]
directory = out/html
title = My report

[xml]
output = out/coverage.xml

[annotate]
directory = out/annotate
`
	path := writeFile(t, ".coveragerc", content)

	rc, err := LoadCoverageRC(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := CoverageRC{
		Mode:        "atomic",
		DataFile:    "build/cover.out",
		Omit:        []string{"*/mocks/*", "*_gen.go"},
		Include:     []string{"./internal/*"},
		ReportOmit:  []string{"cmd/*", "tools/*"},
		Precision:   2,
		ShowMissing: true,
		SkipCovered: true,
		HTMLDir:     "out/html",
		HTMLTitle:   "My report",
		XMLOutput:   "out/coverage.xml",
		AnnotateDir: "out/annotate",
	}
	if !reflect.DeepEqual(rc, want) {
		t.Fatalf("unexpected settings:\n got %+v\nwant %+v", rc, want)
	}
	if got := rc.OmitPatterns(); len(got) != 4 || got[3] != "tools/*" {
		t.Fatalf("unexpected omit patterns: %v", got)
	}
}

func TestLoadCoverageRCDefaults(t *testing.T) {
	path := writeFile(t, ".coveragerc", "[report]\n")
	rc, err := LoadCoverageRC(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(rc, DefaultCoverageSettings()) {
		t.Fatalf("expected defaults, got %+v", rc)
	}
}

func TestLoadCoverageRCMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCoverageRC)
	rc, err := LoadCoverageRC(path, false)
	if err != nil {
		t.Fatalf("optional config should not fail: %v", err)
	}
	if rc.Mode != "set" {
		t.Fatalf("expected default mode, got %s", rc.Mode)
	}
	_, err = LoadCoverageRC(path, true)
	if err == nil {
		t.Fatalf("required config should fail when missing")
	}
	if !errors.Is(err, os.ErrNotExist) || !strings.Contains(err.Error(), path) {
		t.Fatalf("expected a wrapped not-exist error naming %s, got %v", path, err)
	}
}

func TestLoadCoverageRCInvalid(t *testing.T) {
	path := writeFile(t, ".coveragerc", "[run]\nmode = sometimes\n")
	_, err := LoadCoverageRC(path, true)
	if err == nil || !strings.Contains(err.Error(), "mode") {
		t.Fatalf("expected mode error, got %v", err)
	}

	path = writeFile(t, ".coveragerc", "[report]\nprecision = 42\n")
	if _, err := LoadCoverageRC(path, true); err == nil {
		t.Fatalf("expected precision error")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("a, b\n\n  c\n,d")
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
	if splitList("") != nil {
		t.Fatalf("empty list should be nil")
	}
}
