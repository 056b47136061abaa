package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/conveyorci/conveyor/internal/ctxlog"
)

// ValidateRegistry performs a strict parity check between template manifests
// and Go handler code: every manifest input must have a matching struct
// field with a compatible type, and vice versa.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for templateType, def := range r.TemplateRegistry {
		if def.Lifecycle == nil {
			continue
		}
		handler, ok := r.HandlerRegistry[def.Lifecycle.OnRun]
		if !ok {
			continue
		}

		if handler.InputType == nil {
			if len(def.Inputs) > 0 {
				errs = append(errs, fmt.Sprintf("template '%s': manifest declares inputs, but Go handler has no input struct", templateType))
			}
			continue
		}

		manifestInputs := make(map[string]struct{})
		for name := range def.Inputs {
			manifestInputs[name] = struct{}{}
		}

		goInputs := make(map[string]reflect.StructField)
		inputType := handler.InputType
		for i := 0; i < inputType.NumField(); i++ {
			field := inputType.Field(i)
			if !field.IsExported() {
				continue
			}
			tagName := strings.Split(field.Tag.Get("cv"), ",")[0]
			if tagName != "" && tagName != "-" {
				goInputs[tagName] = field
			}
		}

		// Presence mismatches in both directions.
		for name := range goInputs {
			if _, ok := manifestInputs[name]; !ok {
				errs = append(errs, fmt.Sprintf("template '%s': Go struct has field for input '%s' which is not declared in manifest", templateType, name))
			}
		}
		for name := range manifestInputs {
			if _, ok := goInputs[name]; !ok {
				errs = append(errs, fmt.Sprintf("template '%s': manifest declares input '%s' which is not found in Go struct", templateType, name))
			}
		}

		// Type mismatches.
		for name, inputDef := range def.Inputs {
			goField, ok := goInputs[name]
			if !ok {
				continue // already handled by the presence check
			}

			manifestType := inputDef.Type
			if manifestType.Equals(cty.DynamicPseudoType) {
				logger.Warn("Manifest input declares 'type = any', which disables static type checking.", "template", templateType, "input", name)
				continue
			}

			goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
			if err != nil {
				errs = append(errs, fmt.Sprintf("template '%s', input '%s': could not imply cty type from Go field type %s: %v", templateType, name, goField.Type, err))
				continue
			}

			if !manifestType.Equals(goFieldType) {
				errs = append(errs, fmt.Sprintf("template '%s', input '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides type '%s'",
					templateType, name, manifestType.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
