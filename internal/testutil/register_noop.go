package testutil

import (
	"context"
	"reflect"

	"github.com/conveyorci/conveyor/internal/registry"
)

// NoOpModule registers a single "NoOp" template handler. It's useful for
// tests that should fail before execution begins but still need a valid
// manifest that can pass registry validation.
type NoOpModule struct{}

// Register registers a single "NoOp" handler that takes no inputs, requires
// no services, and does nothing.
func (m *NoOpModule) Register(r *registry.Registry) {
	r.RegisterTemplate("NoOp", &registry.RegisteredTemplate{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			// No operation
			return nil, nil
		},
	})
}
