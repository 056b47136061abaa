package dag

import (
	"context"
	"fmt"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/ctxlog"
)

// Build constructs a complete, validated dependency graph from a config model.
func Build(ctx context.Context, model *config.Model) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.")
	graph := &Graph{Nodes: make(map[string]*Node)}

	// First pass: create all nodes for job instances and services.
	if err := createNodes(ctx, model, graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link dependencies.
	if err := linkNodes(ctx, model, graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: node linking complete.")

	// Third pass: initialize counters.
	for _, node := range graph.Nodes {
		node.SetInitialCounters()
	}

	if err := graph.detectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: graph construction successful.")
	return graph, nil
}
