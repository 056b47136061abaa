package echo

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/conveyorci/conveyor/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the echo template.
type Input struct {
	Values map[string]string `cv:"values"`
}

// Deps is an empty struct because this template does not use any services.
type Deps struct{}

// OnRunEcho is the handler for the 'echo' template's on_run lifecycle event.
func OnRunEcho(ctx context.Context, deps *Deps, input *Input) (any, error) {
	slog.Info("Printing values")

	if input.Values == nil {
		fmt.Println("      (null)")
		return nil, nil
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(input.Values))
	for k := range input.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("      %s = %q\n", k, input.Values[k])
	}

	return nil, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTemplate("OnRunEcho", &registry.RegisteredTemplate{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunEcho,
	})
}
