package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/dag"
)

// runJobNode handles the execution of a single job instance.
func (e *Executor) runJobNode(ctx context.Context, node *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("job", node.ID)
	logger.Info("▶️ Starting job instance")

	templateDef, ok := e.registry.TemplateRegistry[node.JobConfig.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", node.JobConfig.Template)
	}
	if templateDef.Lifecycle == nil || templateDef.Lifecycle.OnRun == "" {
		return fmt.Errorf("template %q declares no on_run handler", node.JobConfig.Template)
	}
	handlerName := templateDef.Lifecycle.OnRun
	handler, ok := e.registry.HandlerRegistry[handlerName]
	if !ok {
		return fmt.Errorf("handler %q not registered", handlerName)
	}

	evalCtx := e.buildEvalContext(ctx, node)

	inputStruct := handler.NewInput()
	if inputStruct != nil {
		err := e.converter.DecodeBody(ctx, inputStruct, node.JobConfig.With, templateDef.Inputs, evalCtx)
		if err != nil {
			return fmt.Errorf("failed to decode arguments for job instance %s: %w", node.ID, err)
		}
	}
	logger.Debug("Job instance input.", "data", formatValueForLogs(inputStruct))

	depsStruct, err := e.buildDepsStruct(ctx, node, handler)
	if err != nil {
		return err
	}

	logger.Debug("Calling job run handler.", "handler", handlerName)
	handlerFunc := reflect.ValueOf(handler.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(depsStruct)}

	if inputStruct == nil {
		inputType := handlerFunc.Type().In(2)
		callArgs = append(callArgs, reflect.Zero(inputType))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}

	results := handlerFunc.Call(callArgs)
	nativeOutput, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	if nativeOutput != nil {
		ctyOutput, err := e.converter.ToCtyValue(nativeOutput)
		if err != nil {
			return fmt.Errorf("failed to convert handler output for job instance %s: %w", node.ID, err)
		}
		node.Output = ctyOutput
	}

	logger.Info("✅ Finished job instance")
	return nil
}
