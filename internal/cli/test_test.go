package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const failingScenario = `
name: wrong_expectation
description: "expects a binding that is never made"
objects:
  actions: { 5: { kind: launch, name: Terminal } }
  triggers: { 1: { kind: hotkey, name: F1 } }
flow:
  - op: query
    application: 0
assertions:
  - type: count
    count: 1
`

func TestTestCommand_PassingScenarios(t *testing.T) {
	isolate(t)
	out, err := execute(t, "test", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "PASS dispatch_scope")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommand_Filter(t *testing.T) {
	isolate(t)
	out, err := execute(t, "--format", "json", "test", filepath.Join("..", "harness", "testdata", "scenarios"), "--filter", "trigger_*")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "trigger_conflicts", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_Failure(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(failingScenario), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL wrong_expectation")
	assert.Contains(t, out, "assertion count failed")
}

func TestTestCommand_Errors(t *testing.T) {
	isolate(t)

	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")

	dir := t.TempDir()
	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))
	_, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
