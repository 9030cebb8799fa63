package dag

// Graph is a validated, built DAG: one Node per input Task plus the level
// assignment computed by Build.
type Graph struct {
	Nodes map[string]*Node
	Order []string // input order, used for level tie-breaking
	Level [][]string
}

// Build validates tasks and computes their execution levels (spec.md §4.1).
// It rejects duplicate ids, missing dependencies, and cycles before ever
// touching Kahn's algorithm.
func Build(tasks []Task) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]*Node, len(tasks))}

	for _, t := range tasks {
		if _, exists := g.Nodes[t.ID]; exists {
			return nil, &ErrDuplicateTaskID{ID: t.ID}
		}
		g.Nodes[t.ID] = &Node{
			Task:     t,
			Incoming: map[string]struct{}{},
			Outgoing: map[string]struct{}{},
		}
		g.Order = append(g.Order, t.ID)
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			depNode, ok := g.Nodes[dep]
			if !ok {
				return nil, &ErrMissingDependency{TaskID: t.ID, DependencyID: dep}
			}
			g.Nodes[t.ID].Incoming[dep] = struct{}{}
			depNode.Outgoing[t.ID] = struct{}{}
		}
	}

	if cycle := detectCycle(g); cycle != nil {
		return nil, &ErrCircularDependency{Path: cycle}
	}

	levels, err := computeLevels(g)
	if err != nil {
		return nil, err
	}
	g.Level = levels
	for levelIdx, ids := range levels {
		for _, id := range ids {
			g.Nodes[id].Level = levelIdx
		}
	}

	return g, nil
}

// detectCycle runs DFS with a recursion stack. On revisiting a stack member
// it reconstructs the path from first occurrence to re-entry, inclusive of
// both endpoints.
func detectCycle(g *Graph) []string {
	const (
		white = iota // unvisited
		gray         // on stack
		black        // fully explored
	)
	color := make(map[string]int, len(g.Nodes))
	stack := make([]string, 0, len(g.Nodes))

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)

		node := g.Nodes[id]
		// deterministic order over outgoing edges for reproducible cycle paths
		for _, depID := range g.Order {
			if _, dependent := node.Outgoing[depID]; !dependent {
				continue
			}
			switch color[depID] {
			case white:
				if cycle := visit(depID); cycle != nil {
					return cycle
				}
			case gray:
				// found the back-edge: reconstruct from first occurrence to here
				start := 0
				for i, v := range stack {
					if v == depID {
						start = i
						break
					}
				}
				cycle := append([]string{}, stack[start:]...)
				cycle = append(cycle, depID)
				return cycle
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.Order {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// computeLevels implements Kahn's algorithm: repeatedly drain all nodes with
// zero remaining in-degree into the current level. Tie-break within a level
// is input insertion order.
func computeLevels(g *Graph) ([][]string, error) {
	if len(g.Nodes) == 0 {
		return [][]string{}, nil
	}

	remaining := make(map[string]int, len(g.Nodes))
	for id, n := range g.Nodes {
		remaining[id] = len(n.Incoming)
	}

	var levels [][]string
	done := map[string]struct{}{}

	for len(done) < len(g.Nodes) {
		var current []string
		for _, id := range g.Order {
			if _, finished := done[id]; finished {
				continue
			}
			if remaining[id] == 0 {
				current = append(current, id)
			}
		}
		if len(current) == 0 {
			// Should be unreachable: detectCycle already ran. Guard anyway.
			return nil, &ErrCircularDependency{Path: nil}
		}
		for _, id := range current {
			done[id] = struct{}{}
			for depID := range g.Nodes[id].Outgoing {
				remaining[depID]--
			}
		}
		levels = append(levels, current)
	}

	return levels, nil
}

// Edges returns the flattened from->to edge list for GraphDescription.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, id := range g.Order {
		n := g.Nodes[id]
		for _, depID := range g.Order {
			if _, ok := n.Outgoing[depID]; ok {
				edges = append(edges, Edge{From: id, To: depID})
			}
		}
	}
	return edges
}

// Description returns the GraphDescription used in an ExecutionResult.
func (g *Graph) Description() GraphDescription {
	return GraphDescription{Levels: g.Level, Edges: g.Edges()}
}
