// Package ir provides the canonical term representation shared by every
// tsolve package: types, trait references, goals, clauses, substitutions
// and solutions.
//
// This package contains data definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal, which keeps it
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Ty, Goal, Solution and Guidance are sealed interfaces; consumers
//     switch on them exhaustively
//   - Inference variables are plain indices; their meaning is owned by
//     whoever allocated them (caller table, canonical goal, or solver)
//   - Goal identity is content addressed: canonical JSON with sorted keys
//     and NFC-normalised names, hashed with domain separation
package ir
