// Package options implements the flag values used by plugins: a repeatable,
// splittable choice list and a repeatable path list, both seeded from the
// environment.
package options

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// ChoiceError reports a raw value that is not a member of the allowed set,
// neither whole nor after splitting on commas or whitespace.
type ChoiceError struct {
	Option  string
	Value   string
	Choices []string
}

func (e *ChoiceError) Error() string {
	quoted := make([]string, 0, len(e.Choices))
	for _, c := range e.Choices {
		quoted = append(quoted, strconv.Quote(c))
	}
	return fmt.Sprintf("option %s: invalid choice: %s (choose from %s)",
		e.Option, strconv.Quote(e.Value), strings.Join(quoted, ", "))
}

// Choice is a pflag.Value accumulating members of a fixed set. Each raw value
// may be a single member or a comma- or whitespace-separated list of members.
type Choice struct {
	name    string
	choices []string
	values  []string
	changed bool
}

var _ pflag.Value = (*Choice)(nil)

// NewChoice creates a Choice for the named option. The name is used in errors
// and should include the leading dashes, e.g. "--cov-report".
func NewChoice(name string, choices []string) *Choice {
	c := &Choice{name: name, choices: make([]string, len(choices))}
	copy(c.choices, choices)
	return c
}

// Split classifies raw against the allowed set:
// an exact member, then a comma list, then a whitespace list.
func (c *Choice) Split(raw string) ([]string, error) {
	if c.allowed(raw) {
		return []string{raw}, nil
	}
	if parts, ok := c.allAllowed(strings.Split(raw, ",")); ok {
		return parts, nil
	}
	if parts, ok := c.allAllowed(strings.Fields(raw)); ok {
		return parts, nil
	}
	return nil, &ChoiceError{Option: c.name, Value: raw, Choices: c.Choices()}
}

// Seed sets the default from an environment value. It does not mark the flag
// as changed, so the first explicit Set replaces the seeded values.
func (c *Choice) Seed(raw string) error {
	parts, err := c.Split(raw)
	if err != nil {
		return err
	}
	c.values = parts
	return nil
}

// Set implements pflag.Value. Repeated calls accumulate in call order.
func (c *Choice) Set(raw string) error {
	parts, err := c.Split(raw)
	if err != nil {
		return err
	}
	if !c.changed {
		c.values = nil
		c.changed = true
	}
	c.values = append(c.values, parts...)
	return nil
}

func (c *Choice) String() string { return strings.Join(c.values, ",") }

// Type implements pflag.Value.
func (c *Choice) Type() string { return "choice" }

// Values returns a copy of the accumulated values.
func (c *Choice) Values() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Choices returns a copy of the allowed set.
func (c *Choice) Choices() []string {
	out := make([]string, len(c.choices))
	copy(out, c.choices)
	return out
}

// Changed reports whether Set was called at least once.
func (c *Choice) Changed() bool { return c.changed }

func (c *Choice) allowed(v string) bool {
	for _, choice := range c.choices {
		if v == choice {
			return true
		}
	}
	return false
}

func (c *Choice) allAllowed(parts []string) ([]string, bool) {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !c.allowed(p) {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}
