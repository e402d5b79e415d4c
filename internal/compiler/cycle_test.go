package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsolve/internal/ir"
	"github.com/roach88/tsolve/internal/registry"
)

func traitWithSupers(name string, supers ...string) registry.TraitDecl {
	d := registry.TraitDecl{Name: name}
	for _, s := range supers {
		d.Supertraits = append(d.Supertraits, ir.TraitRef{Trait: s, Self: ir.Bound(0)})
	}
	return d
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(&Program{}))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	p := &Program{Traits: []registry.TraitDecl{
		traitWithSupers("Ord", "PartialOrd", "Eq"),
		traitWithSupers("PartialOrd", "PartialEq"),
		traitWithSupers("Eq", "PartialEq"),
		traitWithSupers("PartialEq"),
	}}
	assert.Empty(t, AnalyzeCycles(p), "diamond is not a cycle")
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	p := &Program{Traits: []registry.TraitDecl{traitWithSupers("Loop", "Loop")}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Loop", "Loop"}, warnings[0].Path)
	assert.Equal(t, "trait Loop is its own supertrait", warnings[0].Message)
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeCycles_TwoTraits(t *testing.T) {
	p := &Program{Traits: []registry.TraitDecl{
		traitWithSupers("A", "B"),
		traitWithSupers("B", "A"),
	}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "A"}, warnings[0].Path)
	assert.Equal(t, "supertrait cycle: A → B → A", warnings[0].Message)
}

func TestAnalyzeCycles_PathStartsAtFirstDeclared(t *testing.T) {
	p := &Program{Traits: []registry.TraitDecl{
		traitWithSupers("Z"),
		traitWithSupers("C", "A"),
		traitWithSupers("B", "C"),
		traitWithSupers("A", "B"),
	}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"C", "A", "B", "C"}, warnings[0].Path)
}

func TestAnalyzeCycles_Multiple(t *testing.T) {
	p := &Program{Traits: []registry.TraitDecl{
		traitWithSupers("Y", "X"),
		traitWithSupers("X", "Y"),
		traitWithSupers("Self1", "Self1"),
		traitWithSupers("Free", "X"),
	}}
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"Y", "X", "Y"}, warnings[0].Path)
	assert.Equal(t, []string{"Self1", "Self1"}, warnings[1].Path)
}

func TestAnalyzeCycles_UndeclaredSupertrait(t *testing.T) {
	// Unknown names are Validate's concern; the analysis ignores them.
	p := &Program{Traits: []registry.TraitDecl{traitWithSupers("A", "Missing")}}
	assert.Empty(t, AnalyzeCycles(p))
}

func TestAnalyzeCycles_FromSource(t *testing.T) {
	p := mustLoad(t, `
trait: {
	A: {supertraits: ["B"]}
	B: {supertraits: ["A"]}
}
`)
	warnings := AnalyzeCycles(p)
	require.Len(t, warnings, 1)
	assert.Empty(t, Validate(p), "supertrait cycles are warnings only")
}
