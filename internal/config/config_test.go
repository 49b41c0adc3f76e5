package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gneiss/internal/errors"
)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
passes:
  - varassign
output: out.ll
log:
  verbosity: 2
  path: /tmp/gneiss.log
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"varassign"}, c.Passes)
	assert.Equal(t, "out.ll", c.Output)
	assert.Equal(t, 2, c.Log.Verbosity)
	assert.Equal(t, "/tmp/gneiss.log", c.Log.Path)

	p, err := c.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, "varassign", p.Passes()[0].Name())
}

func TestParseEmptyDocument(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, c.Passes)

	_, err = c.Pipeline()
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorEmptyPipeline, pe.Code)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		suggestion bool
	}{
		{"scalar passes", "passes: funclog\n", true},
		{"unknown key", "pases: [funclog]\n", false},
		{"not yaml", "passes: [funclog\n", false},
		{"negative verbosity", "passes: [funclog]\nlog:\n  verbosity: -1\n", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			pe, ok := errors.AsPassError(err)
			require.True(t, ok, "expected a pass error, got %v", err)
			assert.Equal(t, errors.ErrorConfig, pe.Code)
			assert.Equal(t, errors.StageConfig, pe.Stage)
			assert.Equal(t, tc.suggestion, len(pe.Suggestions) > 0)
		})
	}
}

func TestPipelineConflict(t *testing.T) {
	c, err := Parse([]byte("passes: [funclog, varassign]\n"))
	require.NoError(t, err)
	_, err = c.Pipeline()
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorConflictingPasses, pe.Code)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gneiss.yaml")
	require.NoError(t, os.WriteFile(path, []byte("passes: [funclog]\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"funclog"}, c.Passes)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorConfig, pe.Code)
	assert.Error(t, pe.Unwrap())
}

func TestLoadAnnotatesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbose: true\n"), 0o644))

	_, err := Load(path)
	pe, ok := errors.AsPassError(err)
	require.True(t, ok)
	assert.Contains(t, pe.Notes, "in "+path)
}

func TestMarshalRoundTrip(t *testing.T) {
	original := Default()
	original.Output = "x.ll"
	data, err := original.Marshal()
	require.NoError(t, err)

	decoded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}
