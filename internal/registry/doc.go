// Package registry catalogs trait implementations and associated-type values
// under flat, process-wide identifiers.
//
// Declarations are unique only within the module that declares them
// (ImplKey). The registry is the sole owner of an arena that hands out
// GlobalImplID and AssocValueID handles at registration time, decoupled
// from any source location, so the solver can treat every implementation
// as one row of a flat clause database.
//
// Lifecycle:
//   - Registration is append-only. Duplicates and dangling references are
//     integration faults and panic with *ConsistencyError.
//   - Solving reads a View taken with Snapshot. A View never observes
//     registrations made after it was taken.
//
// Implementation is a closed variant (UserDeclared, Builtin,
// ClosureCallImpl); View.ImplClause reconstructs the program clause each
// variant contributes.
package registry
