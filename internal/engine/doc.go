// Package engine runs the goals of a compiled program as one session.
//
// A Runner owns the pieces a solve session needs: the registry snapshot
// built from the program, a solver over that snapshot, and optionally a
// solve log. For each goal it builds the goal's environment, encodes the
// site, solves the obligation and applies the solution to a fresh
// inference table holding the goal's caller variables.
//
// ORDERING:
//
// Goals run in declaration order unless the caller names them. Every
// logged record is stamped from a logical clock (store.Clock), never the
// wall clock, so a session's log order is its solve order.
//
// REPLAY:
//
// Runner.Resolve re-solves a logged event against the current program and
// is the store.Resolver used by store.ReplaySession. An event whose goal
// no longer exists, or whose obligation key changed, is reported as an
// error for that event rather than compared.
package engine
