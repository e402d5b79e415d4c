package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/testutil"
)

// writeScenarios creates a scenario directory against the basics program.
func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		src := "program: " + basicsDir + "\n" + body
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

const (
	passingScenario = `name: wf
description: well-formed vector
goals:
  - goal: wf_vec
    expect: {kind: unique, status: bound}
`
	failingScenario = `name: ord
description: expects the wrong kind
goals:
  - goal: ord_custom
    expect: {kind: unique}
`
)

func TestTestCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := runCLI(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "does not exist")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := runCLI(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = runCLI(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)
	var result TestResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, result.Total)
}

func TestTestCommandRepositoryScenarios(t *testing.T) {
	out, err := runCLI(t, "test", testutil.ScenarioDir())
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ closure_output")
	assert.Contains(t, out, "Test Summary: 7 passed, 0 failed, 7 total")
}

func TestTestCommandFailures(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"a.yaml": passingScenario,
		"b.yaml": failingScenario,
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte("name: broken\n"), 0o644))

	out, err := runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ wf")
	assert.Contains(t, out, "✗ ord")
	assert.Contains(t, out, `kind: expected "unique", got "none"`)
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "Test Summary: 1 passed, 2 failed, 3 total")

	out, err = runCLI(t, "--format", "json", "test", dir)
	require.Error(t, err)
	var result TestResult
	resp := decodeData(t, out, &result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Failed)
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"pass_wf.yaml":  passingScenario,
		"fail_ord.yaml": failingScenario,
	})

	out, err := runCLI(t, "test", dir, "--filter", "pass_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")

	_, err = runCLI(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"wf.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "wf.golden")

	var result TestResult
	out, err := runCLI(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	decodeData(t, out, &result)
	assert.Equal(t, GoldenMissing, result.Scenarios[0].Golden)

	out, err = runCLI(t, "--format", "json", "test", dir, "--update")
	require.NoError(t, err)
	decodeData(t, out, &result)
	assert.Equal(t, GoldenUpdated, result.Scenarios[0].Golden)
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"obligation":"WF(Vec<u8>)"`)

	out, err = runCLI(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	decodeData(t, out, &result)
	assert.Equal(t, GoldenMatch, result.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"wf","trace":[]}`), 0o644))
	out, err = runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace differs from")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "wf.golden"), goldenFilePath(filepath.Join("s", "wf.yaml")))
}
