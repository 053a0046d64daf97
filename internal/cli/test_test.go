package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/configstore/internal/testutil"
)

const routeScenario = `name: route_added
description: "A route appears"
scans:
  - items:
      root/lib/routes/out.xml: "<route/>"
    expect:
      - { change: ADD, id: lib/routes/out.xml }
`

const brokenScenario = `name: route_expected_update
description: "Expects the wrong change"
scans:
  - items:
      root/lib/routes/out.xml: "<route/>"
    expect:
      - { change: UPDATE, id: lib/routes/out.xml }
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, files)
	return dir
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"route_added.yaml": routeScenario})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ route_added")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "route_added.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "scenario: route_added\nscan 1: 1 entities, 1 changes\nscan 1: ADD PIP lib/routes/out.xml patch=0 version=")

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"route_added.yaml":          routeScenario,
		"golden/route_added.golden": "scenario: route_added\n",
	})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ route_added")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FilterAndJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"route_added.yaml":           routeScenario,
		"route_expected_update.yaml": brokenScenario,
	})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir, "--filter", "*update")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "route_expected_update", resp.Data.Scenarios[0].Name)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "expected changes")
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"bad.yaml": "name: bad\n"})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "description is required")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "a.golden"), goldenFilePath(filepath.Join("scenarios", "a.yaml")))
}
