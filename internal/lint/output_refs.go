package lint

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// OutputRef is a reference to a declared output of another job, extracted
// from a job.<name>.outputs.<field> traversal.
type OutputRef struct {
	Job    string
	Output string
}

// OutputRefs extracts all job output references from an expression. Shorter
// traversals (job.<name> without an output field) still create dependency
// edges in the dag package but carry nothing to validate here.
func OutputRefs(expr hcl.Expression) []OutputRef {
	var refs []OutputRef
	for _, traversal := range expr.Variables() {
		if ref, ok := ParseOutputTraversal(traversal); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// ParseOutputTraversal analyzes a traversal of the form
// job.<name>.outputs.<field>, returning false for anything else. The name
// step may be an index (job["linux-jammy-build"]) since imported job IDs can
// contain characters a bare traversal cannot express.
func ParseOutputTraversal(traversal hcl.Traversal) (OutputRef, bool) {
	if len(traversal) < 4 || traversal.RootName() != "job" {
		return OutputRef{}, false
	}
	name, nameOk := TraverserName(traversal[1])
	outputs, outputsOk := TraverserName(traversal[2])
	field, fieldOk := TraverserName(traversal[3])
	if !nameOk || !outputsOk || !fieldOk || outputs != "outputs" {
		return OutputRef{}, false
	}
	return OutputRef{Job: name, Output: field}, true
}

// TraverserName extracts the attribute name or string index key of a single
// traversal step.
func TraverserName(step hcl.Traverser) (string, bool) {
	switch s := step.(type) {
	case hcl.TraverseAttr:
		return s.Name, true
	case hcl.TraverseIndex:
		if s.Key.Type() == cty.String {
			return s.Key.AsString(), true
		}
	}
	return "", false
}
