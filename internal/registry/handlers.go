package registry

import (
	"fmt"
	"log/slog"
	"reflect"
)

// RegisteredTemplate holds the compiled Go parts of a template's run handler.
type RegisteredTemplate struct {
	NewInput  func() any
	NewDeps   func() any
	Fn        any
	InputType reflect.Type
}

// RegisterTemplate registers a Go function for a template's run lifecycle event.
func (r *Registry) RegisterTemplate(name string, handler *RegisteredTemplate) {
	if _, exists := r.HandlerRegistry[name]; exists {
		panic(fmt.Sprintf("template handler with name '%s' already registered", name))
	}
	if handler.InputType == nil && handler.NewInput != nil {
		if input := handler.NewInput(); input != nil {
			handler.InputType = reflect.TypeOf(input).Elem()
		}
	}
	slog.Debug("Registering template handler.", "name", name)
	r.HandlerRegistry[name] = handler
}

// RegisteredService holds the Go functions for a service type's lifecycle.
type RegisteredService struct {
	NewInput  func() any
	CreateFn  any
	DestroyFn any
}

// RegisterServiceHandler registers Go functions for a service type's
// create and destroy lifecycle events.
func (r *Registry) RegisterServiceHandler(name string, handler *RegisteredService) {
	if _, exists := r.ServiceHandlerRegistry[name]; exists {
		panic(fmt.Sprintf("service handler with name '%s' already registered", name))
	}
	slog.Debug("Registering service handler.", "name", name)
	r.ServiceHandlerRegistry[name] = handler
}

// RegisterServiceInterface registers the Go interface contract of a service type.
func (r *Registry) RegisterServiceInterface(serviceType string, iface reflect.Type) {
	if _, exists := r.ServiceInterfaceRegistry[serviceType]; exists {
		panic(fmt.Sprintf("interface for service type '%s' already registered", serviceType))
	}
	slog.Debug("Registering service interface.", "serviceType", serviceType, "interface", iface.String())
	r.ServiceInterfaceRegistry[serviceType] = iface
}
