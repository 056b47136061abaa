package trigger

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/conveyorci/conveyor/internal/config"
)

// EvalContext builds the expression evaluation scope for a workflow and an
// event: workflow.name plus trigger.kind, trigger.ref and trigger.ref_type.
func EvalContext(workflowName string, ev Event) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"workflow": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(workflowName),
			}),
			"trigger": cty.ObjectVal(map[string]cty.Value{
				"kind":     cty.StringVal(ev.Kind.String()),
				"ref":      cty.StringVal(ev.Ref),
				"ref_type": cty.StringVal(ev.RefType.String()),
			}),
		},
	}
}

// GroupKey derives the concurrency group key for a run of the workflow
// triggered by the event. Without an explicit policy the key falls back to
// the (workflow, ref, ref-type, kind) tuple, so overlapping runs on the same
// ref always share a group. The key is guaranteed non-empty.
func GroupKey(w *config.Workflow, ev Event) (string, error) {
	if w.Concurrency == nil || w.Concurrency.Group == nil {
		return fmt.Sprintf("%s-%s-%s-%s", w.Name, ev.Ref, ev.RefType, ev.Kind), nil
	}

	val, diags := w.Concurrency.Group.Value(EvalContext(w.Name, ev))
	if diags.HasErrors() {
		return "", fmt.Errorf("evaluating concurrency group for workflow %q: %w", w.Name, diags)
	}

	strVal, err := convert.Convert(val, cty.String)
	if err != nil || strVal.IsNull() {
		return "", fmt.Errorf("concurrency group for workflow %q must be a string", w.Name)
	}
	key := strVal.AsString()
	if key == "" {
		return "", fmt.Errorf("concurrency group for workflow %q evaluated to an empty string for trigger kind %q", w.Name, ev.Kind)
	}
	return key, nil
}
