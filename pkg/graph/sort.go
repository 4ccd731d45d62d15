package graph

import (
	"fmt"
	"slices"
)

// Sort orders nodes so every node comes after everything it requires, using
// Kahn's algorithm. requires maps a node ID to the IDs it depends on.
//
// Ties are broken by directory affinity: among the nodes that are ready, the
// lexicographically smallest one in the same directory as the node emitted
// last wins; when none shares that directory, the smallest ready node
// overall is taken. The result is fully deterministic.
func Sort(nodes []Node, requires map[string][]string) ([]string, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("graph: duplicate node %q", n.ID)
		}
		byID[n.ID] = n
	}

	// pending counts unsatisfied distinct requirements per node.
	pending := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for from, tos := range requires {
		if _, ok := byID[from]; !ok {
			return nil, fmt.Errorf("graph: requires listed for unknown node %q", from)
		}
		seen := make(map[string]bool, len(tos))
		for _, to := range tos {
			if seen[to] {
				continue
			}
			seen[to] = true
			if _, ok := byID[to]; !ok {
				return nil, fmt.Errorf("graph: node %q requires unknown node %q", from, to)
			}
			pending[from]++
			dependents[to] = append(dependents[to], from)
		}
	}

	var ready []Node
	for _, n := range nodes {
		if pending[n.ID] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(nodes))
	var last *Node
	for len(ready) > 0 {
		i := pick(ready, last)
		n := ready[i]
		ready = slices.Delete(ready, i, i+1)
		order = append(order, n.ID)
		last = &n

		for _, dep := range dependents[n.ID] {
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, byID[dep])
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []string
		for _, n := range nodes {
			if pending[n.ID] > 0 {
				stuck = append(stuck, n.ID)
			}
		}
		slices.Sort(stuck)
		return nil, &CycleError{Cycle: stuck}
	}
	return order, nil
}

// pick returns the index of the next node to emit from ready.
func pick(ready []Node, last *Node) int {
	best := -1
	if last != nil {
		for i, n := range ready {
			if n.Dir == last.Dir && (best < 0 || n.ID < ready[best].ID) {
				best = i
			}
		}
		if best >= 0 {
			return best
		}
	}
	for i, n := range ready {
		if best < 0 || n.ID < ready[best].ID {
			best = i
		}
	}
	return best
}
