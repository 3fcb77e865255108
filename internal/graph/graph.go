// Package graph builds dependency graphs over subtasks and computes
// dependency-respecting execution orders. Build is a pure function: the
// graph is derived fresh from a subtask list each time and never updated
// incrementally.
package graph

import (
	"sort"

	"github.com/swarmlab/waggle/pkg/models"
)

// MissingRef records a dependency edge that pointed at a subtask ID absent
// from the input. The edge is dropped rather than failing the build.
type MissingRef struct {
	// SubtaskID is the subtask that declared the dependency.
	SubtaskID string
	// DependencyID is the nonexistent ID it referenced.
	DependencyID string
}

// DependencyGraph is the derived dependency structure for a subtask list.
type DependencyGraph struct {
	// Dependencies maps each subtask ID to the IDs it depends on.
	Dependencies map[string][]string
	// Dependents is the reverse map: ID to the IDs that depend on it.
	Dependents map[string][]string
	// ExecutionOrder is a total ordering consistent with Dependencies.
	// When the graph is cyclic it is best-effort: it contains every
	// subtask that could be placed, in a stable order.
	ExecutionOrder []string
	// Cycles lists ID sequences forming cycles. Empty means acyclic,
	// which callers must check before trusting ExecutionOrder for
	// parallel dispatch.
	Cycles [][]string
	// MissingRefs lists dependency edges dropped because they referenced
	// unknown subtask IDs.
	MissingRefs []MissingRef

	order map[string]int // input position, for stable tie-breaks
}

// Build constructs the graph for a subtask list. It never fails: cycles and
// dangling references are reported on the result instead of raised.
func Build(subtasks []*models.Subtask) *DependencyGraph {
	g := &DependencyGraph{
		Dependencies: make(map[string][]string, len(subtasks)),
		Dependents:   make(map[string][]string, len(subtasks)),
		order:        make(map[string]int, len(subtasks)),
	}

	for i, st := range subtasks {
		g.order[st.ID] = i
		g.Dependencies[st.ID] = nil
		if _, ok := g.Dependents[st.ID]; !ok {
			g.Dependents[st.ID] = nil
		}
	}

	for _, st := range subtasks {
		for _, depID := range st.Dependencies {
			if _, ok := g.order[depID]; !ok {
				g.MissingRefs = append(g.MissingRefs, MissingRef{
					SubtaskID:    st.ID,
					DependencyID: depID,
				})
				continue
			}
			if depID == st.ID {
				// Self-edges are stripped at parse time; drop
				// defensively rather than manufacturing a cycle.
				continue
			}
			g.Dependencies[st.ID] = append(g.Dependencies[st.ID], depID)
			g.Dependents[depID] = append(g.Dependents[depID], st.ID)
		}
	}

	g.ExecutionOrder = g.topoSort()
	if len(g.ExecutionOrder) < len(subtasks) {
		g.Cycles = g.findCycles()
	}
	return g
}

// Acyclic reports whether every subtask could be ordered.
func (g *DependencyGraph) Acyclic() bool {
	return len(g.Cycles) == 0
}

// topoSort runs Kahn's algorithm with input order as the tie-break so the
// result is deterministic for identical input. Nodes stuck behind a cycle
// are omitted.
func (g *DependencyGraph) topoSort() []string {
	inDegree := make(map[string]int, len(g.Dependencies))
	for id, deps := range g.Dependencies {
		inDegree[id] = len(deps)
	}

	ready := make([]string, 0, len(inDegree))
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	g.sortByInput(ready)

	order := make([]string, 0, len(inDegree))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var unlocked []string
		for _, dep := range g.Dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			g.sortByInput(ready)
		}
	}
	return order
}

// Waves partitions ExecutionOrder into dependency-satisfying waves: every
// member of wave i has all of its dependencies in waves < i, so a wave's
// members can be dispatched concurrently once the previous wave completes.
// Subtasks trapped in cycles appear in no wave.
func (g *DependencyGraph) Waves() [][]string {
	placed := make(map[string]int, len(g.ExecutionOrder))
	var waves [][]string

	for _, id := range g.ExecutionOrder {
		wave := 0
		for _, dep := range g.Dependencies[id] {
			if depWave, ok := placed[dep]; ok && depWave+1 > wave {
				wave = depWave + 1
			}
		}
		for len(waves) <= wave {
			waves = append(waves, nil)
		}
		waves[wave] = append(waves[wave], id)
		placed[id] = wave
	}
	return waves
}

// findCycles extracts the cycles among nodes absent from ExecutionOrder
// using depth-first coloring. Each cycle is reported once, rotated so it
// starts at its earliest-input member.
func (g *DependencyGraph) findCycles() [][]string {
	ordered := make(map[string]bool, len(g.ExecutionOrder))
	for _, id := range g.ExecutionOrder {
		ordered[id] = true
	}

	var remaining []string
	for id := range g.Dependencies {
		if !ordered[id] {
			remaining = append(remaining, id)
		}
	}
	g.sortByInput(remaining)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(remaining))
	seen := make(map[string]bool)
	var cycles [][]string
	var path []string

	var visit func(id string)
	visit = func(id string) {
		colors[id] = gray
		path = append(path, id)

		for _, dep := range g.Dependencies[id] {
			if ordered[dep] {
				continue
			}
			switch colors[dep] {
			case gray:
				// Back edge: the cycle is the path segment from dep.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := g.canonicalize(append([]string(nil), path[start:]...))
				key := cycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			case white:
				visit(dep)
			}
		}

		colors[id] = black
		path = path[:len(path)-1]
	}

	for _, id := range remaining {
		if colors[id] == white {
			visit(id)
		}
	}
	return cycles
}

// canonicalize rotates a cycle so it begins at its earliest-input member.
func (g *DependencyGraph) canonicalize(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	best := 0
	for i := 1; i < len(cycle); i++ {
		if g.order[cycle[i]] < g.order[cycle[best]] {
			best = i
		}
	}
	rotated := make([]string, 0, len(cycle))
	rotated = append(rotated, cycle[best:]...)
	rotated = append(rotated, cycle[:best]...)
	return rotated
}

func cycleKey(cycle []string) string {
	key := ""
	for _, id := range cycle {
		key += id + "\x00"
	}
	return key
}

func (g *DependencyGraph) sortByInput(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return g.order[ids[i]] < g.order[ids[j]]
	})
}
