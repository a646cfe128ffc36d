package graph

// IsDAG reports whether the graph contains no directed cycles.
// Diagnostic only; runs a full DFS in O(V+E).
func (g *Graph) IsDAG() bool { return !g.HasCycle() }

// HasCycle detects directed cycles using depth-first search with
// white/gray/black coloring. The DFS is iterative so deep citation chains
// cannot overflow the goroutine stack.
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, g.VertexCount())

	// Explicit stack of (vertex, next-child) frames.
	type frame struct {
		v    int
		next int
	}

	for start := range g.vertexIDs {
		if color[start] != white {
			continue
		}
		stack := []frame{{v: start}}
		color[start] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(g.adjOut[top.v]) {
				child := g.adjOut[top.v][top.next]
				top.next++
				switch color[child] {
				case gray:
					return true
				case white:
					color[child] = gray
					stack = append(stack, frame{v: child})
				}
				continue
			}
			color[top.v] = black
			stack = stack[:len(stack)-1]
		}
	}
	return false
}

// ConnectedComponents returns the weakly connected components as slices of
// vertex ids. The result is computed on first use and cached; the graph is
// immutable after Build, so the cache never goes stale.
func (g *Graph) ConnectedComponents() [][]string {
	if g.components == nil {
		g.components = g.computeComponents()
	}
	out := make([][]string, len(g.components))
	for i, comp := range g.components {
		out[i] = g.resolve(comp)
	}
	return out
}

// ComponentCount returns the number of weakly connected components.
func (g *Graph) ComponentCount() int {
	if g.components == nil {
		g.components = g.computeComponents()
	}
	return len(g.components)
}

func (g *Graph) computeComponents() [][]int {
	visited := make([]bool, g.VertexCount())
	var components [][]int

	for start := range g.vertexIDs {
		if visited[start] {
			continue
		}
		var component []int
		stack := []int{start}
		for len(stack) > 0 {
			curr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[curr] {
				continue
			}
			visited[curr] = true
			component = append(component, curr)

			// Both directions: components are over the undirected skeleton.
			for _, n := range g.adjOut[curr] {
				if !visited[n] {
					stack = append(stack, n)
				}
			}
			for _, n := range g.adjIn[curr] {
				if !visited[n] {
					stack = append(stack, n)
				}
			}
		}
		components = append(components, component)
	}
	return components
}
