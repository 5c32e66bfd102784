package registry

import (
	"fmt"
	"sort"
)

// graph is the directed dependency graph over definitions. An edge
// dependency -> dependent means the dependent runs after the dependency.
type graph struct {
	nodes map[string]*graphNode
	edges map[string][]string
}

type graphNode struct {
	name     string
	order    int // declaration order, used as the tie-breaker
	inDegree int
	visited  bool
	inStack  bool
}

// buildGraph adds all definitions first, then wires edges so a reference to a
// name that was never registered is reported as UnknownDependencyError.
func buildGraph(defs []Definition) (*graph, error) {
	g := &graph{
		nodes: make(map[string]*graphNode, len(defs)),
		edges: make(map[string][]string, len(defs)),
	}

	for i, d := range defs {
		g.nodes[d.Name] = &graphNode{name: d.Name, order: i}
		g.edges[d.Name] = []string{}
	}

	for _, d := range defs {
		for _, dep := range d.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &UnknownDependencyError{Migration: d.Name, Dependency: dep}
			}
			g.edges[dep] = append(g.edges[dep], d.Name)
			g.nodes[d.Name].inDegree++
		}
	}

	return g, nil
}

// detectCycle finds a circular dependency using DFS with an in-stack marker
// and returns the cycle path, or nil when the graph is acyclic.
func (g *graph) detectCycle() []string {
	for _, n := range g.nodes {
		n.visited = false
		n.inStack = false
	}

	// Iterate in declaration order so the reported cycle is stable.
	names := g.namesByOrder()
	for _, name := range names {
		if !g.nodes[name].visited {
			if cycle := g.dfsDetectCycle(name, []string{}); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func (g *graph) dfsDetectCycle(name string, path []string) []string {
	node := g.nodes[name]
	node.visited = true
	node.inStack = true
	path = append(path, name)

	for _, neighbor := range g.edges[name] {
		nn := g.nodes[neighbor]
		if nn.inStack {
			for i, p := range path {
				if p == neighbor {
					return append(path[i:], neighbor)
				}
			}
		}
		if !nn.visited {
			if cycle := g.dfsDetectCycle(neighbor, path); cycle != nil {
				return cycle
			}
		}
	}

	node.inStack = false
	return nil
}

// topologicalSort orders the nodes with Kahn's algorithm. Ready nodes are
// drained in declaration order, making the output deterministic for a given
// definition set, which keeps audit logs reproducible.
func (g *graph) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		inDegree[name] = n.inDegree
	}

	ready := make([]string, 0, len(g.nodes))
	for _, name := range g.namesByOrder() {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		g.sortByOrder(ready)
		current := ready[0]
		ready = ready[1:]
		result = append(result, current)

		for _, neighbor := range g.edges[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				ready = append(ready, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("topological sort failed: graph contains cycles")
	}
	return result, nil
}

func (g *graph) namesByOrder() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	g.sortByOrder(names)
	return names
}

func (g *graph) sortByOrder(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return g.nodes[names[i]].order < g.nodes[names[j]].order
	})
}
