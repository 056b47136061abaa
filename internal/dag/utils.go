package dag

import (
	"fmt"
)

// detectCycles checks for circular dependencies in the graph using DFS.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(node *Node) error
	visit = func(node *Node) error {
		visiting[node.ID] = true
		for _, dep := range node.Deps {
			if visiting[dep.ID] {
				return fmt.Errorf("cycle detected involving %q", dep.ID)
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, node.ID)
		visited[node.ID] = true
		return nil
	}

	for _, node := range g.Nodes {
		if !visited[node.ID] {
			if err := visit(node); err != nil {
				return err
			}
		}
	}
	return nil
}

// JobInstances returns all instances of the named job in index order.
func (g *Graph) JobInstances(name string) []*Node {
	var instances []*Node
	for _, node := range g.Nodes {
		if node.Type == JobNode && node.Name == name {
			instances = append(instances, node)
		}
	}
	// Index order matters for aggregated matrix outputs.
	for i := 1; i < len(instances); i++ {
		for j := i; j > 0 && instances[j-1].Index > instances[j].Index; j-- {
			instances[j-1], instances[j] = instances[j], instances[j-1]
		}
	}
	return instances
}
