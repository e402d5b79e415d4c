package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning represents a cycle among trait declarations.
//
// Cycles are warnings, not errors: environment elaboration visits each
// trait once, so a cyclic supertrait chain still builds a finite
// environment. It does make every trait in the cycle imply every other.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles reports supertrait cycles.
//
// The algorithm:
//  1. Build the trait -> supertrait graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Warnings are ordered by the first trait of each cycle in declaration
// order.
func AnalyzeCycles(p *Program) []CycleWarning {
	graph := make(dependencyGraph)
	var order []string
	for _, t := range p.Traits {
		order = append(order, t.Name)
		graph[t.Name] = []string{}
		for _, s := range t.Supertraits {
			graph[t.Name] = append(graph[t.Name], s.Trait)
		}
	}

	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph, order))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return slices.Index(order, a.Path[0]) - slices.Index(order, b.Path[0])
	})
	return warnings
}

// dependencyGraph maps trait -> supertraits.
type dependencyGraph map[string][]string

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components, visiting roots in order.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning. The path starts at
// the SCC member declared first.
func cycleSCCToWarning(scc []string, graph dependencyGraph, order []string) CycleWarning {
	start := scc[0]
	for _, n := range scc {
		if slices.Index(order, n) < slices.Index(order, start) {
			start = n
		}
	}
	if len(scc) == 1 {
		return CycleWarning{
			Path:    []string{start, start},
			Message: fmt.Sprintf("trait %s is its own supertrait", start),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(start, scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("supertrait cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from start until it
// returns to start.
func reconstructCyclePath(start string, scc []string, graph dependencyGraph) []string {
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
