package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed keys. The version suffix allows the
// encoding to change without colliding with old keys.
const (
	DomainGoal       = "tsolve/goal/v1"
	DomainObligation = "tsolve/obligation/v1"
	DomainSolution   = "tsolve/solution/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null byte separates domain from data.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GoalKey computes the content-addressed key of a goal. Callers pass a
// canonicalized goal so that alpha-equivalent goals share a key.
func GoalKey(g Goal) (string, error) {
	canonical, err := MarshalCanonical(GoalToIR(g))
	if err != nil {
		return "", fmt.Errorf("GoalKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGoal, canonical), nil
}

// ObligationKey computes the key of a goal together with its environment.
// Two obligations share a key only if their clauses agree in order.
func ObligationKey(obl InEnvironment[Goal]) (string, error) {
	clauses := make(IRArray, obl.Env.Len())
	for i := range clauses {
		clauses[i] = ClauseToIR(obl.Env.Clause(i))
	}
	obj := IRObject{
		"env":  clauses,
		"goal": GoalToIR(obl.Goal),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ObligationKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainObligation, canonical), nil
}

// SolutionHash computes the hash used to compare solutions across runs.
func SolutionHash(s Solution) (string, error) {
	canonical, err := MarshalCanonical(SolutionToIR(s))
	if err != nil {
		return "", fmt.Errorf("SolutionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSolution, canonical), nil
}

// MustGoalKey is like GoalKey but panics on error.
func MustGoalKey(g Goal) string {
	key, err := GoalKey(g)
	if err != nil {
		panic(err)
	}
	return key
}

// MustObligationKey is like ObligationKey but panics on error.
func MustObligationKey(obl InEnvironment[Goal]) string {
	key, err := ObligationKey(obl)
	if err != nil {
		panic(err)
	}
	return key
}

// MustSolutionHash is like SolutionHash but panics on error.
func MustSolutionHash(s Solution) string {
	hash, err := SolutionHash(s)
	if err != nil {
		panic(err)
	}
	return hash
}
