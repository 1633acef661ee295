package options

import (
	"sort"
	"strings"
)

// Env is an immutable view of environment variables.
type Env struct {
	vars map[string]string
}

// NewEnv builds an Env from KEY=VALUE pairs, as returned by os.Environ.
// Later pairs override earlier ones; entries without '=' are ignored.
func NewEnv(pairs []string) Env {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	return Env{vars: vars}
}

// EnvFromMap builds an Env from a map.
func EnvFromMap(m map[string]string) Env {
	vars := make(map[string]string, len(m))
	for k, v := range m {
		vars[k] = v
	}
	return Env{vars: vars}
}

// Lookup returns the value of key and whether it is set.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Get returns the value of key, or fallback when unset.
func (e Env) Get(key, fallback string) string {
	if v, ok := e.vars[key]; ok {
		return v
	}
	return fallback
}

// Overlay returns a new Env where the receiver's values win over base.
func (e Env) Overlay(base Env) Env {
	vars := make(map[string]string, len(e.vars)+len(base.vars))
	for k, v := range base.vars {
		vars[k] = v
	}
	for k, v := range e.vars {
		vars[k] = v
	}
	return Env{vars: vars}
}

// Pairs returns the variables as sorted KEY=VALUE pairs.
func (e Env) Pairs() []string {
	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
