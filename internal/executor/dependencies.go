package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/dag"
	"github.com/conveyorci/conveyor/internal/lint"
	"github.com/conveyorci/conveyor/internal/registry"
)

// buildDepsStruct populates the `deps` struct for a job handler by resolving
// the job's `uses` block to live service instances.
func (e *Executor) buildDepsStruct(ctx context.Context, node *dag.Node, handler *registry.RegisteredTemplate) (any, error) {
	logger := ctxlog.FromContext(ctx)
	depsStruct := handler.NewDeps()

	if node.JobConfig.Uses == nil {
		return depsStruct, nil
	}

	usesMap := node.JobConfig.Uses
	depsValue := reflect.ValueOf(depsStruct).Elem()
	depsType := depsValue.Type()

	for i := 0; i < depsValue.NumField(); i++ {
		field := depsType.Field(i)
		fieldLogger := logger.With("job", node.ID, "go_field", field.Name)

		tag := field.Tag.Get("cv")
		if tag == "" || tag == "-" {
			continue
		}
		lookupKey := strings.Split(tag, ",")[0]

		serviceExpr, ok := usesMap[lookupKey]
		if !ok {
			fieldLogger.Debug("No matching entry in 'uses' block for key, skipping.", "key", lookupKey)
			continue
		}

		vars := serviceExpr.Variables()
		if len(vars) != 1 {
			return nil, fmt.Errorf("field %q in 'uses' must be a direct reference to one service", lookupKey)
		}
		serviceID, err := traversalToServiceID(vars[0])
		if err != nil {
			return nil, err
		}

		instance, found := e.serviceInstances.Load(serviceID)
		if !found {
			return nil, fmt.Errorf("job %q requires service %q, which has not been created", node.ID, serviceID)
		}

		instanceType := reflect.TypeOf(instance)
		fieldType := field.Type

		if fieldType.Kind() == reflect.Interface {
			if !instanceType.Implements(fieldType) {
				return nil, fmt.Errorf("type mismatch for %q: service of type %v does not implement required interface %v", lookupKey, instanceType, fieldType)
			}
		} else if !instanceType.AssignableTo(fieldType) {
			return nil, fmt.Errorf("type mismatch for %q: service of type %v is not assignable to field of type %v", lookupKey, instanceType, fieldType)
		}

		fieldLogger.Debug("Injecting service dependency.", "service_id", serviceID)
		depsValue.Field(i).Set(reflect.ValueOf(instance))
	}

	return depsStruct, nil
}

// traversalToServiceID converts a service traversal into its canonical node
// ID. Both attribute and string-index steps are accepted, since instance
// names with hyphens can only be written as service.<type>["<name>"].
func traversalToServiceID(v hcl.Traversal) (string, error) {
	if len(v) < 3 {
		return "", fmt.Errorf("invalid service traversal")
	}
	if v.RootName() != "service" {
		return "", fmt.Errorf("expected a 'service' traversal, got %q", v.RootName())
	}
	serviceType, typeOk := lint.TraverserName(v[1])
	instanceName, nameOk := lint.TraverserName(v[2])
	if !typeOk || !nameOk {
		return "", fmt.Errorf("invalid service reference: expected service.<type>.<name>")
	}
	return fmt.Sprintf("service.%s.%s", serviceType, instanceName), nil
}
