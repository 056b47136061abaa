package dag

import (
	"context"
	"fmt"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/matrix"
)

// JobInstanceID returns the canonical node ID of one instance of a job. Jobs
// without a matrix occupy a single unindexed node.
func JobInstanceID(job *config.Job, index int) string {
	if len(job.Matrix) == 0 {
		return fmt.Sprintf("job.%s", job.Name)
	}
	return fmt.Sprintf("job.%s[%d]", job.Name, index)
}

// ServiceID returns the canonical node ID of a service instance.
func ServiceID(svc *config.Service) string {
	return fmt.Sprintf("service.%s.%s", svc.ServiceType, svc.Name)
}

// createNodes performs the first pass of graph creation: one node per job
// matrix instance and one per service.
func createNodes(ctx context.Context, model *config.Model, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)

	for _, job := range model.Jobs {
		entries := matrix.Expand(job)
		for i, entry := range entries {
			id := JobInstanceID(job, i)
			if _, exists := graph.Nodes[id]; exists {
				return fmt.Errorf("duplicate job definition %q", id)
			}
			n := &Node{
				ID:         id,
				Name:       job.Name,
				Type:       JobNode,
				JobConfig:  job,
				Index:      i,
				Deps:       make(map[string]*Node),
				Dependents: make(map[string]*Node),
			}
			if len(job.Matrix) > 0 {
				n.Matrix = entry
			}
			graph.Nodes[id] = n
		}
	}

	for _, svc := range model.Services {
		id := ServiceID(svc)
		if _, exists := graph.Nodes[id]; exists {
			return fmt.Errorf("duplicate service definition %q", id)
		}
		graph.Nodes[id] = &Node{
			ID:            id,
			Name:          svc.Name,
			Type:          ServiceNode,
			ServiceConfig: svc,
			Deps:          make(map[string]*Node),
			Dependents:    make(map[string]*Node),
		}
	}

	logger.Debug("Created graph nodes.", "jobs", len(model.Jobs), "services", len(model.Services))
	return nil
}
