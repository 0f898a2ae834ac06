package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// Graph is the read-only dependency graph of one run, built once from a
// validated spec set and immutable afterwards. The topological order is
// the default start order; its reverse is the default stop order. Nodes
// with no ordering constraint between them keep declaration order, so
// runs are reproducible.
type Graph struct {
	set            *SpecSet
	topo           []string
	index          map[string]int // topological position
	deps           map[string][]domain.Dependency
	hardDependents map[string][]string
	softDependents map[string][]string
}

// BuildGraph constructs adjacency from the declared dependencies and
// rejects cycles, naming the offending path.
func BuildGraph(set *SpecSet) (*Graph, error) {
	g := &Graph{
		set:            set,
		index:          make(map[string]int, set.Len()),
		deps:           make(map[string][]domain.Dependency, set.Len()),
		hardDependents: make(map[string][]string),
		softDependents: make(map[string][]string),
	}

	for _, name := range set.Names() {
		spec := set.Get(name)
		g.deps[name] = append([]domain.Dependency(nil), spec.DependsOn...)
		for _, dep := range spec.DependsOn {
			if dep.Soft {
				g.softDependents[dep.Name] = append(g.softDependents[dep.Name], name)
			} else {
				g.hardDependents[dep.Name] = append(g.hardDependents[dep.Name], name)
			}
		}
	}

	topo, err := g.topoSort(set.Names())
	if err != nil {
		return nil, err
	}
	g.topo = topo
	for i, name := range topo {
		g.index[name] = i
	}
	return g, nil
}

func (g *Graph) topoSort(order []string) ([]string, error) {
	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)

	state := make(map[string]uint8, len(order))
	stack := make([]string, 0, len(order))
	stackPos := make(map[string]int, len(order))
	topo := make([]string, 0, len(order))

	var dfs func(name string) error
	dfs = func(name string) error {
		switch state[name] {
		case stateDone:
			return nil
		case stateVisiting:
			pos := stackPos[name]
			cycle := append([]string(nil), stack[pos:]...)
			cycle = append(cycle, name)
			return &CycleError{Path: cycle}
		}

		state[name] = stateVisiting
		stackPos[name] = len(stack)
		stack = append(stack, name)

		for _, dep := range g.deps[name] {
			if state[dep.Name] == stateVisiting {
				pos := stackPos[dep.Name]
				cycle := append([]string(nil), stack[pos:]...)
				cycle = append(cycle, dep.Name)
				return &CycleError{Path: cycle}
			}
			if err := dfs(dep.Name); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, name)
		state[name] = stateDone
		topo = append(topo, name)
		return nil
	}

	for _, name := range order {
		if state[name] == stateDone {
			continue
		}
		if err := dfs(name); err != nil {
			return nil, err
		}
	}
	return topo, nil
}

// TopoOrder returns the start order snapshot (dependencies first).
func (g *Graph) TopoOrder() []string {
	order := make([]string, len(g.topo))
	copy(order, g.topo)
	return order
}

// StopOrder returns the drain order snapshot (dependents first).
func (g *Graph) StopOrder() []string {
	order := make([]string, len(g.topo))
	for i, name := range g.topo {
		order[len(g.topo)-1-i] = name
	}
	return order
}

// Dependencies returns the declared edges of one node.
func (g *Graph) Dependencies(name string) []domain.Dependency {
	return append([]domain.Dependency(nil), g.deps[name]...)
}

// HardDependents returns the direct dependents reaching name over a hard
// edge.
func (g *Graph) HardDependents(name string) []string {
	return append([]string(nil), g.hardDependents[name]...)
}

// SoftDependents returns the direct dependents reaching name over a soft
// edge.
func (g *Graph) SoftDependents(name string) []string {
	return append([]string(nil), g.softDependents[name]...)
}

// HasNode reports whether the graph contains the node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// TransitiveHardDependents returns every node reachable from name over
// hard edges only, in topological order. These are the nodes a failure
// of name propagates to.
func (g *Graph) TransitiveHardDependents(name string) []string {
	visited := map[string]bool{name: true}
	queue := append([]string(nil), g.hardDependents[name]...)
	var out []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		out = append(out, current)
		queue = append(queue, g.hardDependents[current]...)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.index[out[i]] < g.index[out[j]]
	})
	return out
}

// DOT exports Graphviz DOT text of the dependency graph.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph kestrel {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, g.set.Len())
	for i, name := range g.set.Names() {
		alias := fmt.Sprintf("n%d", i)
		aliases[name] = alias
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", alias, escapeDOT(name)))
	}
	for _, name := range g.set.Names() {
		for _, dep := range g.deps[name] {
			attrs := ""
			if dep.Soft {
				attrs = " [style=dashed]"
			}
			b.WriteString(fmt.Sprintf("  %s -> %s%s;\n", aliases[name], aliases[dep.Name], attrs))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
