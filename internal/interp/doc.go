// Package interp applies solver results to the caller's inference state.
//
// Apply maps the substitution of a solution, which is written over the
// placeholders goal.Encode allocated, back onto caller inference variables.
// Unique and Definite solutions bind; Suggested ones only leave hints.
// Application is checked against an overlay first and committed only when
// every caller variable agrees, so a Conflict outcome leaves the store as
// it was. Applying the same solution again binds nothing new.
package interp
