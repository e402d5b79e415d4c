package ir

// Version constants for the term schema and solver.
const (
	// IRVersion is the canonical term schema version. Bump when the
	// canonical JSON encoding of goals or solutions changes.
	IRVersion = "1"

	// SolverVersion is the tsolve solver version recorded in solve logs.
	SolverVersion = "0.1.0"
)
