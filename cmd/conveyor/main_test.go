package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conveyorci/conveyor/internal/actions"
	"github.com/conveyorci/conveyor/internal/hclconf"
)

func TestRun_HelpExitsCleanly(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer

	err := run(&out, []string{"-h"})

	require.NoError(t, err)
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer

	err := run(&out, []string{})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_StartupPanicIsRecovered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pipeline := filepath.Join(dir, "broken.hcl")
	require.NoError(t, os.WriteFile(pipeline, []byte(`job "oops" {`), 0o644))

	var out bytes.Buffer
	err := run(&out, []string{"-p", pipeline, "-modules-path", dir})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a critical startup error occurred")
}

func TestRun_LintOnlyReportsErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pipeline := filepath.Join(dir, "main.hcl")
	// References a template no manifest declares.
	require.NoError(t, os.WriteFile(pipeline, []byte(`
job "compile" {
  template = "missing"
}
`), 0o644))

	var out bytes.Buffer
	err := run(&out, []string{"-p", pipeline, "-modules-path", dir, "-lint"})

	require.Error(t, err)
	assert.Contains(t, out.String(), "missing")
}

func TestNewLoader_PicksByExtension(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &hclconf.Loader{}, newLoader("pipeline.hcl"))
	assert.IsType(t, &actions.Loader{}, newLoader("pipeline.yml"))
	assert.IsType(t, &actions.Loader{}, newLoader("some/dir"))
}
