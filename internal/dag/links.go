package dag

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/lint"
)

// linkNodes performs the second pass, establishing dependency links from both
// explicit `needs` declarations and implicit expression references.
func linkNodes(ctx context.Context, model *config.Model, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting node linking pass.")

	instancesByJob := make(map[string][]*Node)
	for _, node := range graph.Nodes {
		if node.Type == JobNode {
			instancesByJob[node.Name] = append(instancesByJob[node.Name], node)
		}
	}

	for _, node := range graph.Nodes {
		if node.Type != JobNode {
			continue
		}

		if err := linkExplicitDeps(ctx, node, instancesByJob, graph); err != nil {
			return err
		}

		var expressions []hcl.Expression
		for _, expr := range node.JobConfig.With {
			expressions = append(expressions, expr)
		}
		for _, expr := range node.JobConfig.Uses {
			expressions = append(expressions, expr)
		}
		for _, expr := range expressions {
			if err := linkImplicitDeps(ctx, node, expr, model, instancesByJob, graph); err != nil {
				return err
			}
		}
	}
	logger.Debug("Finished node linking pass.")
	return nil
}

// linkExplicitDeps resolves the `needs` list of a job instance. A needs edge
// fans in from every instance of the needed job, so a sharded test job waits
// for its build job regardless of shard count on either side.
func linkExplicitDeps(ctx context.Context, node *Node, instancesByJob map[string][]*Node, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, depName := range node.JobConfig.Needs {
		instances, ok := instancesByJob[depName]
		if !ok {
			return fmt.Errorf("node %q needs non-existent job %q", node.ID, depName)
		}
		for _, depNode := range instances {
			if _, exists := node.Deps[depNode.ID]; !exists {
				logger.Debug("Linking explicit dependency.", "from", node.ID, "to", depNode.ID)
				node.Deps[depNode.ID] = depNode
				depNode.Dependents[node.ID] = node
			}
		}
	}
	return nil
}

// linkImplicitDeps parses an expression for variable traversals and creates
// dependency links for job output references and service bindings. An output
// reference is validated against the producing job's template manifest.
func linkImplicitDeps(ctx context.Context, node *Node, expr hcl.Expression, model *config.Model, instancesByJob map[string][]*Node, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)

	for _, traversal := range expr.Variables() {
		switch traversal.RootName() {
		case "job":
			if len(traversal) < 2 {
				continue
			}
			jobName, ok := lint.TraverserName(traversal[1])
			if !ok {
				continue
			}
			instances, found := instancesByJob[jobName]
			if !found {
				return fmt.Errorf("node %q references non-existent job %q", node.ID, jobName)
			}
			if ref, isOutput := lint.ParseOutputTraversal(traversal); isOutput {
				if err := validateOutputReference(ref, instances[0], model); err != nil {
					return fmt.Errorf("in %q: %w", node.ID, err)
				}
			}
			for _, depNode := range instances {
				if depNode.ID == node.ID {
					return fmt.Errorf("node %q references its own outputs", node.ID)
				}
				if _, exists := node.Deps[depNode.ID]; !exists {
					logger.Debug("Linking implicit dependency.", "from", node.ID, "to", depNode.ID)
					node.Deps[depNode.ID] = depNode
					depNode.Dependents[node.ID] = node
				}
			}

		case "service":
			if len(traversal) < 3 {
				continue
			}
			serviceType, typeOk := lint.TraverserName(traversal[1])
			instanceName, nameOk := lint.TraverserName(traversal[2])
			if !typeOk || !nameOk {
				return fmt.Errorf("node %q has a malformed service reference: expected service.<type>.<name>", node.ID)
			}
			depID := fmt.Sprintf("service.%s.%s", serviceType, instanceName)
			depNode, ok := graph.Nodes[depID]
			if !ok {
				return fmt.Errorf("node %q uses non-existent service %q", node.ID, depID)
			}
			if _, exists := node.Deps[depID]; !exists {
				logger.Debug("Linking service dependency.", "from", node.ID, "to", depID)
				node.Deps[depID] = depNode
				depNode.Dependents[node.ID] = node
			}
		}
	}
	return nil
}

// validateOutputReference checks a job.<x>.outputs.<f> reference against the
// producing job's template manifest.
func validateOutputReference(ref lint.OutputRef, depNode *Node, model *config.Model) error {
	def, ok := model.Templates[depNode.JobConfig.Template]
	if !ok {
		return fmt.Errorf("internal error: could not find template definition %q", depNode.JobConfig.Template)
	}
	if _, declared := def.Outputs[ref.Output]; !declared {
		return fmt.Errorf("reference to undeclared output %q on job %q", ref.Output, ref.Job)
	}
	return nil
}
