// Package solver decides trait obligations by resolution search.
//
// A goal is matched against the clauses of its environment first and the
// registry's implementations second, each in declaration order. Matching a
// clause unifies the goal with the clause head and solves the clause's
// conditions recursively under the same environment.
//
// Outcome policy:
//   - one matching candidate with settled conditions is Unique
//   - several candidates are Ambiguous, with Definite guidance when they all
//     bind the goal's variables the same way, Suggested when exactly one is
//     marked as a default, Unknown otherwise
//   - NoSolution only after every candidate was tried and failed
//
// Cycles are detected on a per-call goal stack keyed by the canonical goal.
// Auto traits and well-formedness are coinductive (a cycle is provisionally
// true); every other goal is inductive (a cycle contributes nothing).
//
// Every candidate attempt costs one unit of fuel. A branch that runs out
// contributes no candidate and turns what would have been NoSolution or
// Unique into Ambiguous.
package solver
