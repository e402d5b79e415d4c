package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/compiler"
	"github.com/roach88/tsolve/internal/testutil"
)

func TestCompileText(t *testing.T) {
	out, err := runCLI(t, "compile", basicsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled program basics")
	assert.Contains(t, out, "Impls:    9")
	assert.Contains(t, out, "Goals:    13")
	assert.NotContains(t, out, "goal vec_show")

	out, err = runCLI(t, "--verbose", "compile", basicsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "goal vec_show: Vec<Vec<u8>>: Show")
	assert.Contains(t, out, "goal closure_output: <closure#1: FnOnce<(i32)>>::Output == ?0")
}

func TestCompileJSON(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "compile", basicsDir)
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "basics", result.Program)
	assert.Equal(t, []string{"Show", "Render", "Ord", "Eq", "PartialOrd", "Iterator", "Conv", "Send"}, result.Traits)
	assert.Equal(t, []string{"closure#1: Fn", "closure#2: FnOnce"}, result.Closures)
	require.Len(t, result.Goals, 13)

	first := result.Goals[0]
	assert.Equal(t, "numeric_default", first.Name)
	assert.Equal(t, "i32: Default", first.Obligation)
	assert.Len(t, first.Key, 64)

	param := result.Goals[1]
	assert.Equal(t, "generic_default", param.Context)
	assert.NotEqual(t, first.Key, param.Key)
}

func TestCompileOutputIsCanonical(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")

	out, err := runCLI(t, "compile", basicsDir, "-o", a)
	require.NoError(t, err)
	assert.Contains(t, out, "Output written to: "+a)
	_, err = runCLI(t, "compile", basicsDir, "--output", b)
	require.NoError(t, err)

	first, err := os.ReadFile(a)
	require.NoError(t, err)
	second, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"program":"basics"`)
}

func TestCompileKeysMatchSolveLog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "solve.db")
	_, err := runCLI(t, "solve", basicsDir, "--db", dbPath, "--goal", "vec_show")
	require.NoError(t, err)

	prog := testutil.LoadProgram(t, "basics")
	result, err := compileResult(prog)
	require.NoError(t, err)

	out, err := runCLI(t, "--format", "json", "trace", "--db", dbPath)
	require.NoError(t, err)
	var trace TraceResult
	decodeData(t, out, &trace)
	require.Len(t, trace.Events, 1)

	for _, g := range result.Goals {
		if g.Name == "vec_show" {
			assert.Equal(t, g.Key, trace.Events[0].GoalKey)
			return
		}
	}
	t.Fatal("vec_show not compiled")
}

func TestCompileInvalidProgram(t *testing.T) {
	dir := writeProgram(t, `goal: g: {query: "u8: Missing"}`)

	_, err := runCLI(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCompileResult_RegistryFault(t *testing.T) {
	prog, err := compiler.LoadString("dup", `trait: Show: {}`)
	require.NoError(t, err)
	prog.Traits = append(prog.Traits, prog.Traits[0])

	_, err = compileResult(prog)
	assert.Error(t, err)
}
