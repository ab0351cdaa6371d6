package harness

import "sort"

// graph maps a node index to the indices of its successors.
type graph [][]int

// findCycles returns every strongly connected component that is a cycle:
// more than one member, or a single member with a self-loop. Members and
// cycles are sorted by node index.
func findCycles(g graph) [][]int {
	var cycles [][]int
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(g, scc[0]) {
			sort.Ints(scc)
			cycles = append(cycles, scc)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

func hasSelfLoop(g graph, v int) bool {
	for _, w := range g[v] {
		if w == v {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components with Tarjan's algorithm.
// Nodes are visited in index order so the result is deterministic.
func tarjanSCC(g graph) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make([]int, len(g))
		lowlink = make([]int, len(g))
		onStack = make([]bool, len(g))
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of an SCC: pop it off the stack
		if lowlink[v] == indices[v] {
			var scc []int
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

	for v := range g {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}
