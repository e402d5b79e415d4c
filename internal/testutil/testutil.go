// Package testutil holds fixtures shared by package tests: the repository's
// testdata programs, throwaway solve logs and a silent logger.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/compiler"
	"github.com/roach88/tsolve/internal/store"
)

// RepoRoot returns the repository root, located from this file so tests in
// any package resolve the same testdata.
func RepoRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("testutil: cannot locate source file")
	}
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// ProgramDir returns the directory of a testdata program.
func ProgramDir(name string) string {
	return filepath.Join(RepoRoot(), "testdata", "programs", name)
}

// ScenarioDir returns the directory of the testdata scenarios.
func ScenarioDir() string {
	return filepath.Join(RepoRoot(), "testdata", "scenarios")
}

// LoadProgram compiles a testdata program and fails the test on error.
func LoadProgram(t testing.TB, name string) *compiler.Program {
	t.Helper()
	prog, err := compiler.LoadDir(ProgramDir(name))
	require.NoError(t, err)
	return prog
}

// OpenStore opens a solve log in a temp directory, closed on cleanup.
// It returns the store and its path.
func OpenStore(t testing.TB) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solve.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

// QuietLogger returns a logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
