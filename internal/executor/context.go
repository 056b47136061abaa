package executor

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/dag"
)

// buildEvalContext creates the expression evaluation context for a node. It
// extends the run-scoped variables (workflow.*, trigger.*) with the outputs
// of completed dependency jobs and, for matrix instances, the `matrix`
// variable describing this shard.
func (e *Executor) buildEvalContext(ctx context.Context, node *dag.Node) *hcl.EvalContext {
	logger := ctxlog.FromContext(ctx)
	evalCtx := e.baseCtx.NewChild()
	evalCtx.Variables = make(map[string]cty.Value)

	// Group completed dependency instances by job name. An unsharded job
	// exposes a single outputs object; a matrix job exposes a tuple of
	// outputs objects in shard-index order.
	depsByJob := make(map[string][]*dag.Node)
	for _, depNode := range node.Deps {
		if depNode.Type != dag.JobNode {
			continue
		}
		if depNode.GetState() != dag.Done || depNode.Output == nil {
			continue
		}
		depsByJob[depNode.Name] = append(depsByJob[depNode.Name], depNode)
	}

	jobVars := make(map[string]cty.Value)
	for name, instances := range depsByJob {
		if len(instances) == 1 && instances[0].Matrix == nil {
			jobVars[name] = cty.ObjectVal(map[string]cty.Value{
				"outputs": instances[0].Output.(cty.Value),
			})
			continue
		}
		sortByIndex(instances)
		outputs := make([]cty.Value, 0, len(instances))
		for _, inst := range instances {
			outputs = append(outputs, inst.Output.(cty.Value))
		}
		jobVars[name] = cty.ObjectVal(map[string]cty.Value{
			"outputs": cty.TupleVal(outputs),
		})
	}
	if len(jobVars) > 0 {
		evalCtx.Variables["job"] = cty.ObjectVal(jobVars)
	}

	if node.Matrix != nil {
		evalCtx.Variables["matrix"] = cty.ObjectVal(map[string]cty.Value{
			"config":     cty.StringVal(node.Matrix.Config),
			"shard":      cty.NumberIntVal(int64(node.Matrix.Shard)),
			"num_shards": cty.NumberIntVal(int64(node.Matrix.NumShards)),
			"runner":     cty.StringVal(node.Matrix.Runner),
		})
	}

	logger.Debug("Built evaluation context.", "node", node.ID, "dep_jobs", len(jobVars))
	return evalCtx
}

// sortByIndex orders job instances by their matrix index.
func sortByIndex(nodes []*dag.Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j-1].Index > nodes[j].Index; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}
