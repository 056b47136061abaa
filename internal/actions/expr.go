package actions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// githubContextRewrites maps GitHub expression contexts onto the engine's
// native variables. Longer keys come first so `github.ref_type` is not
// clobbered by the `github.ref` rewrite.
var githubContextRewrites = []struct{ from, to string }{
	{"github.event_name", "trigger.kind"},
	{"github.ref_type", "trigger.ref_type"},
	{"github.ref_name", "trigger.ref"},
	{"github.ref", "trigger.ref"},
	{"github.workflow", "workflow.name"},
}

// GitHub job IDs may contain hyphens, which a bare traversal cannot express,
// so needs references become index syntax: job["linux-jammy-build"].
var needsRefPattern = regexp.MustCompile(`\bneeds\.([\w-]+)`)

// rewriteExpr translates the inside of a `${{ ... }}` block to native
// expression syntax.
func rewriteExpr(src string) string {
	for _, r := range githubContextRewrites {
		src = strings.ReplaceAll(src, r.from, r.to)
	}
	return needsRefPattern.ReplaceAllString(src, `job["$1"]`)
}

// parseValue converts a decoded YAML value into an hcl.Expression. Strings
// containing `${{ ... }}` become real expressions; everything else becomes a
// static literal.
func parseValue(v any, filename string) (hcl.Expression, error) {
	rng := hcl.Range{Filename: filename, Start: hcl.InitialPos, End: hcl.InitialPos}

	if s, ok := v.(string); ok && strings.Contains(s, "${{") {
		return parseTemplate(s, filename)
	}

	val, err := toCtyValue(v)
	if err != nil {
		return nil, err
	}
	return hcl.StaticExpr(val, rng), nil
}

// parseTemplate converts a GitHub expression string into an HCL expression.
// A string that is a single bare expression keeps its native type; anything
// with surrounding text becomes a string template.
func parseTemplate(s, filename string) (hcl.Expression, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "${{") && strings.HasSuffix(trimmed, "}}") {
		inner := trimmed[3 : len(trimmed)-2]
		if !strings.Contains(inner, "${{") {
			expr, diags := hclsyntax.ParseExpression([]byte(rewriteExpr(inner)), filename, hcl.InitialPos)
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid expression %q in %s: %w", s, filename, diags)
			}
			return expr, nil
		}
	}

	native := strings.ReplaceAll(strings.ReplaceAll(rewriteExpr(s), "${{", "${"), "}}", "}")
	expr, diags := hclsyntax.ParseTemplate([]byte(native), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid expression %q in %s: %w", s, filename, diags)
	}
	return expr, nil
}

// toCtyValue converts a plain YAML-decoded Go value into a cty literal.
func toCtyValue(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(val))
		for _, item := range val {
			elem, err := toCtyValue(item)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, elem)
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(val))
		for k, item := range val {
			attr, err := toCtyValue(item)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = attr
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
	}
}
