package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/testcov/internal/application"
	"github.com/felixgeelhaar/testcov/internal/pathutil"
)

// DefaultHostConfig is the host config file looked up when --config is not given.
const DefaultHostConfig = ".testcov.yaml"

// Loader reads the host config file in YAML or TOML, chosen by extension.
type Loader struct{}

var _ application.HostConfigLoader = Loader{}

type fileConfig struct {
	Args     []string          `yaml:"args" toml:"args"`
	Env      map[string]string `yaml:"env" toml:"env"`
	Packages []string          `yaml:"packages" toml:"packages"`
}

func (l Loader) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Find returns the first existing candidate for path: path itself, then the
// same name with a .toml extension. It returns "" when neither exists.
func (l Loader) Find(path string) (string, error) {
	candidates := []string{path}
	if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
		candidates = append(candidates, strings.TrimSuffix(path, ext)+".toml")
	}
	for _, c := range candidates {
		ok, err := l.Exists(c)
		if err != nil {
			return "", err
		}
		if ok {
			return c, nil
		}
	}
	return "", nil
}

func (l Loader) Load(path string) (application.HostConfig, error) {
	clean, err := pathutil.ValidatePath(path)
	if err != nil {
		return application.HostConfig{}, err
	}
	raw, err := os.ReadFile(clean)
	if err != nil {
		return application.HostConfig{}, err
	}

	var cfg fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &cfg); err != nil {
			return application.HostConfig{}, errors.Wrapf(err, "parse %s", path)
		}
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return application.HostConfig{}, errors.Wrapf(err, "parse %s", path)
		}
	}

	return application.HostConfig{
		Path:     path,
		Args:     cfg.Args,
		Env:      cfg.Env,
		Packages: cfg.Packages,
	}, nil
}

// Write encodes cfg as YAML.
func Write(w io.Writer, cfg application.HostConfig) error {
	out := fileConfig{
		Args:     cfg.Args,
		Env:      cfg.Env,
		Packages: cfg.Packages,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(out)
}
