package options

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportChoices = []string{"term", "term-missing", "annotate", "html", "xml"}

func TestChoice_Split(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single member", "term", []string{"term"}},
		{"member containing a dash", "term-missing", []string{"term-missing"}},
		{"comma list", "term,html,xml", []string{"term", "html", "xml"}},
		{"comma list with spaces", " term , html ", []string{"term", "html"}},
		{"whitespace list", "term html xml", []string{"term", "html", "xml"}},
		{"tabs and newlines", "annotate\thtml\nxml", []string{"annotate", "html", "xml"}},
		{"repeated member", "html,html", []string{"html", "html"}},
		{"blank yields nothing", "   ", []string{}},
		{"empty yields nothing", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChoice("--cov-report", reportChoices)
			got, err := c.Split(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestChoice_SplitInvalid(t *testing.T) {
	for _, raw := range []string{"pdf", "term,pdf", "term pdf", "term,,html", "term, html xml", "'term'"} {
		t.Run(raw, func(t *testing.T) {
			c := NewChoice("--cov-report", reportChoices)
			_, err := c.Split(raw)
			require.Error(t, err)

			var choiceErr *ChoiceError
			require.True(t, errors.As(err, &choiceErr))
			assert.Equal(t, "--cov-report", choiceErr.Option)
			assert.Equal(t, raw, choiceErr.Value)
			assert.Equal(t, reportChoices, choiceErr.Choices)
		})
	}
}

func TestChoiceError_Message(t *testing.T) {
	err := &ChoiceError{Option: "--cov-report", Value: "pdf", Choices: []string{"term", "html"}}
	assert.Equal(t, `option --cov-report: invalid choice: "pdf" (choose from "term", "html")`, err.Error())
}

func TestChoice_SetAccumulates(t *testing.T) {
	c := NewChoice("--cov-report", reportChoices)
	require.NoError(t, c.Set("term"))
	require.NoError(t, c.Set("html,xml"))
	require.NoError(t, c.Set("annotate term-missing"))

	assert.True(t, c.Changed())
	assert.Equal(t, []string{"term", "html", "xml", "annotate", "term-missing"}, c.Values())
	assert.Equal(t, "term,html,xml,annotate,term-missing", c.String())
	assert.Equal(t, "choice", c.Type())
}

func TestChoice_SetRejectsWithoutMutating(t *testing.T) {
	c := NewChoice("--cov-report", reportChoices)
	require.NoError(t, c.Set("term"))
	require.Error(t, c.Set("bogus"))
	assert.Equal(t, []string{"term"}, c.Values())
}

func TestChoice_SeedIsReplacedByFirstSet(t *testing.T) {
	c := NewChoice("--cov-report", reportChoices)
	require.NoError(t, c.Seed("html,xml"))
	assert.False(t, c.Changed())
	assert.Equal(t, []string{"html", "xml"}, c.Values())

	require.NoError(t, c.Set("term"))
	require.NoError(t, c.Set("annotate"))
	assert.Equal(t, []string{"term", "annotate"}, c.Values())
}

func TestChoice_SeedInvalid(t *testing.T) {
	c := NewChoice("--cov-report", reportChoices)
	require.Error(t, c.Seed("nope"))
	assert.Empty(t, c.Values())
}

func TestChoice_ValuesIsACopy(t *testing.T) {
	c := NewChoice("--cov-report", reportChoices)
	require.NoError(t, c.Set("term"))
	v := c.Values()
	v[0] = "mutated"
	assert.Equal(t, []string{"term"}, c.Values())

	choices := c.Choices()
	choices[0] = "mutated"
	assert.Equal(t, reportChoices, c.Choices())
}

func TestChoice_WithFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c := NewChoice("--cov-report", reportChoices)
	fs.Var(c, "cov-report", "reports")

	err := fs.Parse([]string{"--cov-report", "term", "--cov-report=html,xml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"term", "html", "xml"}, c.Values())
}

func TestChoice_WithFlagSetInvalid(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(new(discard))
	c := NewChoice("--cov-report", reportChoices)
	fs.Var(c, "cov-report", "reports")

	err := fs.Parse([]string{"--cov-report=term,pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid choice: "term,pdf"`)
	assert.Contains(t, err.Error(), `"term-missing"`)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
