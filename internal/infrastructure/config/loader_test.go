package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/testcov/internal/application"
)

func TestLoadYAML(t *testing.T) {
	content := "args:\n  - --with-cov\n  - --cov-report=term-missing\nenv:\n  NOSE_COV: ./internal\npackages:\n  - ./internal/...\n"
	path := writeFile(t, ".testcov.yaml", content)

	cfg, err := Loader{}.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("expected path %s, got %s", path, cfg.Path)
	}
	if len(cfg.Args) != 2 || cfg.Args[1] != "--cov-report=term-missing" {
		t.Fatalf("unexpected args: %v", cfg.Args)
	}
	if cfg.Env["NOSE_COV"] != "./internal" {
		t.Fatalf("unexpected env: %v", cfg.Env)
	}
	if len(cfg.Packages) != 1 || cfg.Packages[0] != "./internal/..." {
		t.Fatalf("unexpected packages: %v", cfg.Packages)
	}
}

func TestLoadTOML(t *testing.T) {
	content := "args = [\"--with-cov\"]\npackages = [\"./...\"]\n\n[env]\nNOSE_COV_REPORT = \"html,xml\"\n"
	path := writeFile(t, ".testcov.toml", content)

	cfg, err := Loader{}.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Args) != 1 || cfg.Args[0] != "--with-cov" {
		t.Fatalf("unexpected args: %v", cfg.Args)
	}
	if cfg.Env["NOSE_COV_REPORT"] != "html,xml" {
		t.Fatalf("unexpected env: %v", cfg.Env)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeFile(t, ".testcov.yaml", "args: [unterminated\n")
	if _, err := (Loader{}).Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
	path = writeFile(t, ".testcov.toml", "args = \n")
	if _, err := (Loader{}).Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := (Loader{}).Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestExistsAndFind(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, ".testcov.yaml")

	ok, err := Loader{}.Exists(yamlPath)
	if err != nil || ok {
		t.Fatalf("expected missing file, got %v %v", ok, err)
	}
	found, err := Loader{}.Find(yamlPath)
	if err != nil || found != "" {
		t.Fatalf("expected nothing found, got %q %v", found, err)
	}

	tomlPath := filepath.Join(dir, ".testcov.toml")
	if err := os.WriteFile(tomlPath, []byte("args = []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	found, err = Loader{}.Find(yamlPath)
	if err != nil || found != tomlPath {
		t.Fatalf("expected toml fallback, got %q %v", found, err)
	}

	if err := os.WriteFile(yamlPath, []byte("args: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	found, err = Loader{}.Find(yamlPath)
	if err != nil || found != yamlPath {
		t.Fatalf("expected yaml to win, got %q %v", found, err)
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := application.HostConfig{
		Args: []string{"--with-cov", "--cov-report=term-missing"},
		Env:  map[string]string{"NOSE_COV": "."},
	}
	var buf bytes.Buffer
	if err := Write(&buf, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "args:") {
		t.Fatalf("expected args block, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "NOSE_COV: .") {
		t.Fatalf("expected env block, got %s", buf.String())
	}

	path := writeFile(t, ".testcov.yaml", buf.String())
	back, err := Loader{}.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(back.Args) != 2 {
		t.Fatalf("expected args to survive a round trip, got %v", back.Args)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}
