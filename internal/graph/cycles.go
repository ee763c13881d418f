package graph

import "sort"

// DetectCycles returns every dependency cycle between files: each
// strongly connected component of size two or more, plus self-loops.
// Components come back path-sorted inside and out.
func (t *Tracker) DetectCycles() [][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodes := sortedPaths(t.files)
	adjacency := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		adjacency[node] = sortedSet(t.uses[node])
	}

	var cycles [][]string
	for _, component := range stronglyConnected(nodes, adjacency) {
		if len(component) > 1 {
			cycles = append(cycles, component)
			continue
		}
		node := component[0]
		if t.uses[node][node] {
			cycles = append(cycles, component)
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i][0] < cycles[j][0]
	})
	return cycles
}

// sccWalk holds the Tarjan traversal state across recursive visits.
type sccWalk struct {
	adjacency  map[string][]string
	counter    int
	order      map[string]int
	low        map[string]int
	stack      []string
	onStack    map[string]bool
	components [][]string
}

// stronglyConnected groups nodes into strongly connected components.
// Each component is sorted; component order follows Tarjan completion.
func stronglyConnected(nodes []string, adjacency map[string][]string) [][]string {
	w := &sccWalk{
		adjacency: adjacency,
		order:     make(map[string]int, len(nodes)),
		low:       make(map[string]int, len(nodes)),
		stack:     make([]string, 0, len(nodes)),
		onStack:   make(map[string]bool, len(nodes)),
	}
	for _, node := range nodes {
		if _, seen := w.order[node]; !seen {
			w.visit(node)
		}
	}
	return w.components
}

func (w *sccWalk) visit(node string) {
	w.order[node] = w.counter
	w.low[node] = w.counter
	w.counter++
	w.stack = append(w.stack, node)
	w.onStack[node] = true

	for _, next := range w.adjacency[node] {
		if _, seen := w.order[next]; !seen {
			w.visit(next)
			w.low[node] = min(w.low[node], w.low[next])
		} else if w.onStack[next] {
			w.low[node] = min(w.low[node], w.order[next])
		}
	}

	if w.low[node] != w.order[node] {
		return
	}

	// node roots a component: pop everything above it off the stack
	var component []string
	for {
		last := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.onStack[last] = false
		component = append(component, last)
		if last == node {
			break
		}
	}
	sort.Strings(component)
	w.components = append(w.components, component)
}
