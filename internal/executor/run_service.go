package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/dag"
)

// runServiceNode handles the creation of a stateful service instance.
func (e *Executor) runServiceNode(ctx context.Context, node *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("service", node.ID)
	logger.Info("▶️ Creating service")

	serviceType := node.ServiceConfig.ServiceType
	typeDef, ok := e.registry.ServiceTypeRegistry[serviceType]
	if !ok {
		return fmt.Errorf("unknown service type %q", serviceType)
	}
	if typeDef.Lifecycle == nil {
		return fmt.Errorf("service type %q declares no lifecycle", serviceType)
	}

	createHandler, ok := e.registry.ServiceHandlerRegistry[typeDef.Lifecycle.Create]
	if !ok || createHandler.CreateFn == nil {
		return fmt.Errorf("create handler %q not registered", typeDef.Lifecycle.Create)
	}
	destroyHandler, ok := e.registry.ServiceHandlerRegistry[typeDef.Lifecycle.Destroy]
	if !ok || destroyHandler.DestroyFn == nil {
		return fmt.Errorf("destroy handler %q not registered", typeDef.Lifecycle.Destroy)
	}

	inputStruct := createHandler.NewInput()
	if inputStruct != nil {
		evalCtx := e.buildEvalContext(ctx, node)
		err := e.converter.DecodeBody(ctx, inputStruct, node.ServiceConfig.Arguments, typeDef.Inputs, evalCtx)
		if err != nil {
			return fmt.Errorf("failed to decode arguments for service %s: %w", node.ID, err)
		}
	}

	logger.Debug("Calling service create handler.", "handler", typeDef.Lifecycle.Create)
	handlerFunc := reflect.ValueOf(createHandler.CreateFn)
	results := handlerFunc.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(inputStruct)})
	serviceObj, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	node.Output = serviceObj
	e.serviceInstances.Store(node.ID, serviceObj)

	destroyFn := destroyHandler.DestroyFn
	e.pushCleanup(func() {
		node.Destroy(func() {
			logger.Info("🔥 Destroying service")
			reflect.ValueOf(destroyFn).Call([]reflect.Value{reflect.ValueOf(serviceObj)})
			e.serviceInstances.Delete(node.ID)
		})
	})

	logger.Info("✅ Service created")
	return nil
}

// destroyService tears a service down as soon as its last dependent job has
// finished. The node's destroy-once gate keeps this safe against the final
// cleanup stack.
func (e *Executor) destroyService(ctx context.Context, node *dag.Node) {
	logger := ctxlog.FromContext(ctx).With("service", node.ID)

	serviceType := node.ServiceConfig.ServiceType
	typeDef, ok := e.registry.ServiceTypeRegistry[serviceType]
	if !ok || typeDef.Lifecycle == nil {
		return
	}
	destroyHandler, ok := e.registry.ServiceHandlerRegistry[typeDef.Lifecycle.Destroy]
	if !ok || destroyHandler.DestroyFn == nil {
		return
	}
	instance, found := e.serviceInstances.Load(node.ID)
	if !found {
		return
	}

	node.Destroy(func() {
		logger.Info("🔥 Destroying service (last dependent finished)")
		reflect.ValueOf(destroyHandler.DestroyFn).Call([]reflect.Value{reflect.ValueOf(instance)})
		e.serviceInstances.Delete(node.ID)
	})
}
