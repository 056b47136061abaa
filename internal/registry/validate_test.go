package registry

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/ctxlog"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type buildInput struct {
	Command string `cv:"command"`
	Retries int    `cv:"retries"`
}

func registryWithTemplate(t *testing.T, inputs map[string]*config.InputDefinition, inputType reflect.Type) *Registry {
	t.Helper()

	r := New()
	r.RegisterTemplate("OnRunBuild", &RegisteredTemplate{
		NewInput:  func() any { return reflect.New(inputType).Interface() },
		InputType: inputType,
		NewDeps:   func() any { return new(struct{}) },
		Fn:        func(ctx context.Context, deps any, input any) (any, error) { return nil, nil },
	})

	model := config.NewModel()
	model.Templates["build"] = &config.TemplateDefinition{
		Type:      "build",
		Lifecycle: &config.Lifecycle{OnRun: "OnRunBuild"},
		Inputs:    inputs,
	}
	r.PopulateDefinitionsFromModel(model)
	return r
}

func TestValidateRegistry_Parity(t *testing.T) {
	t.Parallel()

	r := registryWithTemplate(t, map[string]*config.InputDefinition{
		"command": {Name: "command", Type: cty.String},
		"retries": {Name: "retries", Type: cty.Number},
	}, reflect.TypeOf(buildInput{}))

	assert.NoError(t, r.ValidateRegistry(testContext()))
}

func TestValidateRegistry_ManifestInputMissingFromStruct(t *testing.T) {
	t.Parallel()

	r := registryWithTemplate(t, map[string]*config.InputDefinition{
		"command": {Name: "command", Type: cty.String},
		"retries": {Name: "retries", Type: cty.Number},
		"extra":   {Name: "extra", Type: cty.String},
	}, reflect.TypeOf(buildInput{}))

	err := r.ValidateRegistry(testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `manifest declares input 'extra' which is not found in Go struct`)
}

func TestValidateRegistry_StructFieldMissingFromManifest(t *testing.T) {
	t.Parallel()

	r := registryWithTemplate(t, map[string]*config.InputDefinition{
		"command": {Name: "command", Type: cty.String},
	}, reflect.TypeOf(buildInput{}))

	err := r.ValidateRegistry(testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Go struct has field for input 'retries' which is not declared in manifest`)
}

func TestValidateRegistry_TypeMismatch(t *testing.T) {
	t.Parallel()

	r := registryWithTemplate(t, map[string]*config.InputDefinition{
		"command": {Name: "command", Type: cty.Bool},
		"retries": {Name: "retries", Type: cty.Number},
	}, reflect.TypeOf(buildInput{}))

	err := r.ValidateRegistry(testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")
}

func TestValidateRegistry_DynamicTypeIsAWarningOnly(t *testing.T) {
	t.Parallel()

	type anyInput struct {
		Value cty.Value `cv:"value"`
	}
	r := registryWithTemplate(t, map[string]*config.InputDefinition{
		"value": {Name: "value", Type: cty.DynamicPseudoType},
	}, reflect.TypeOf(anyInput{}))

	assert.NoError(t, r.ValidateRegistry(testContext()))
}

func TestRegisterTemplate_DuplicatePanics(t *testing.T) {
	t.Parallel()

	r := New()
	handler := &RegisteredTemplate{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(struct{}) },
		Fn:       func(ctx context.Context, deps any, input any) (any, error) { return nil, nil },
	}
	r.RegisterTemplate("OnRunX", handler)

	assert.Panics(t, func() {
		r.RegisterTemplate("OnRunX", handler)
	})
}
