package registry

import (
	"reflect"

	"github.com/conveyorci/conveyor/internal/config"
)

// Module is the interface that all built-in modules implement to register
// their handlers with the engine.
type Module interface {
	Register(r *Registry)
}

// Registry holds all registered handlers, definitions, and interfaces for a
// single application instance.
type Registry struct {
	HandlerRegistry          map[string]*RegisteredTemplate
	ServiceHandlerRegistry   map[string]*RegisteredService
	TemplateRegistry         map[string]*config.TemplateDefinition
	ServiceTypeRegistry      map[string]*config.ServiceTypeDefinition
	ServiceInterfaceRegistry map[string]reflect.Type
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		HandlerRegistry:          make(map[string]*RegisteredTemplate),
		ServiceHandlerRegistry:   make(map[string]*RegisteredService),
		TemplateRegistry:         make(map[string]*config.TemplateDefinition),
		ServiceTypeRegistry:      make(map[string]*config.ServiceTypeDefinition),
		ServiceInterfaceRegistry: make(map[string]reflect.Type),
	}
}

// PopulateDefinitionsFromModel copies the loaded manifests from the config
// model into the registry for access during execution.
func (r *Registry) PopulateDefinitionsFromModel(model *config.Model) {
	for key, val := range model.Templates {
		r.TemplateRegistry[key] = val
	}
	for key, val := range model.ServiceTypes {
		r.ServiceTypeRegistry[key] = val
	}
}
