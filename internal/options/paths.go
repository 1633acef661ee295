package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Paths is a repeatable free-form string flag. Every use appends one entry.
type Paths struct {
	values  []string
	changed bool
}

var _ pflag.Value = (*Paths)(nil)

// Seed sets a single default entry without marking the flag as changed.
// An empty value leaves the list empty.
func (p *Paths) Seed(raw string) {
	p.values = nil
	if raw != "" {
		p.values = []string{raw}
	}
}

// Set implements pflag.Value.
func (p *Paths) Set(raw string) error {
	if !p.changed {
		p.values = nil
		p.changed = true
	}
	p.values = append(p.values, raw)
	return nil
}

func (p *Paths) String() string { return strings.Join(p.values, ",") }

// Type implements pflag.Value.
func (p *Paths) Type() string { return "path" }

// Values returns a copy of the accumulated entries.
func (p *Paths) Values() []string {
	out := make([]string, len(p.values))
	copy(out, p.values)
	return out
}

// Changed reports whether Set was called at least once.
func (p *Paths) Changed() bool { return p.changed }
