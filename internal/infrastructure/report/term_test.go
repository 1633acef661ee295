package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

func noColor() *bool {
	off := false
	return &off
}

func sampleResult() domain.Result {
	return domain.Result{
		Mode: "set",
		Files: []domain.FileCoverage{
			{
				Name: "example.com/m/b.go", RelPath: "b.go", Statements: 4, Missed: 0,
				Lines: map[int]domain.LineStatus{1: domain.LineCovered, 2: domain.LineCovered},
			},
			{
				Name: "example.com/m/a.go", RelPath: "a.go", Statements: 10, Missed: 2,
				Lines: map[int]domain.LineStatus{
					1: domain.LineCovered, 2: domain.LineCovered, 3: domain.LineMissed, 4: domain.LineMissed, 7: domain.LineMissed,
				},
			},
		},
	}
}

func TestWriteTerminal(t *testing.T) {
	buf := new(bytes.Buffer)
	err := Writer{Color: noColor()}.WriteTerminal(buf, sampleResult(), Options{}, false)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "Name"))
	assert.NotContains(t, lines[0], "Missing")
	assert.Equal(t, strings.Repeat("-", len(lines[0])), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "a.go"), "files are sorted by name")
	assert.Contains(t, lines[2], "80%")
	assert.True(t, strings.HasPrefix(lines[3], "b.go"))
	assert.Contains(t, lines[3], "100%")
	assert.True(t, strings.HasPrefix(lines[5], "TOTAL"))
	assert.Contains(t, lines[5], "14")
	assert.Contains(t, lines[5], "86%")
}

func TestWriteTerminalMissing(t *testing.T) {
	buf := new(bytes.Buffer)
	err := Writer{Color: noColor()}.WriteTerminal(buf, sampleResult(), Options{}, true)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Missing")
	assert.Contains(t, out, "3-4, 7")
}

func TestWriteTerminalSkipCovered(t *testing.T) {
	buf := new(bytes.Buffer)
	err := Writer{Color: noColor()}.WriteTerminal(buf, sampleResult(), Options{SkipCovered: true}, false)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "b.go")
	assert.Contains(t, out, "1 files skipped due to complete coverage.")
}

func TestWriteTerminalPrecision(t *testing.T) {
	buf := new(bytes.Buffer)
	err := Writer{Color: noColor()}.WriteTerminal(buf, sampleResult(), Options{Precision: 2}, false)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "85.71%")
}

func TestWriteTerminalEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	err := Writer{Color: noColor()}.WriteTerminal(buf, domain.Result{}, Options{}, false)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "TOTAL")
	assert.Contains(t, buf.String(), "100%")
}

func TestCoverStyleThresholds(t *testing.T) {
	assert.Equal(t, highStyle, coverStyle(80))
	assert.Equal(t, midStyle, coverStyle(50))
	assert.Equal(t, lowStyle, coverStyle(49.9))
}

func TestColorEnabledForBuffer(t *testing.T) {
	assert.False(t, Writer{}.colorEnabled(new(bytes.Buffer)))
	on := true
	assert.True(t, Writer{Color: &on}.colorEnabled(new(bytes.Buffer)))
}
