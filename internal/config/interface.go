package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for format-specific data binding and type
// conversion. It bridges raw configuration expressions and the Go structs
// used by template handlers.
type Converter interface {
	// DecodeBody evaluates the raw argument expressions of a `with` block and
	// populates the target Go struct, applying manifest defaults and type
	// conversions along the way.
	DecodeBody(
		ctx context.Context,
		inputStruct any,
		args map[string]hcl.Expression,
		defs map[string]*InputDefinition,
		evalCtx *hcl.EvalContext,
	) error

	// ToCtyValue converts a native Go value (such as a handler's output map)
	// into its equivalent cty.Value for the engine's internal use.
	ToCtyValue(v any) (cty.Value, error)
}
