// This file translates the HCL schema structs into the format-agnostic
// configuration model defined in the config package.

package hclconf

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/schema"
)

// translateWorkflow converts the HCL workflow block into the agnostic model.
func translateWorkflow(w *schema.Workflow) (*config.Workflow, error) {
	out := &config.Workflow{Name: w.Name}

	if w.On != nil {
		triggers := &config.Triggers{}
		if w.On.Push != nil {
			triggers.Push = &config.PushTrigger{
				Branches: w.On.Push.Branches,
				Tags:     w.On.Push.Tags,
			}
		}
		for _, s := range w.On.Schedule {
			triggers.Schedule = append(triggers.Schedule, &config.ScheduleTrigger{Cron: s.Cron})
		}
		triggers.Dispatch = w.On.Dispatch != nil
		out.Triggers = triggers
	}

	if w.Concurrency != nil {
		if w.Concurrency.Group == nil {
			return nil, fmt.Errorf("workflow %q: concurrency block requires a group expression", w.Name)
		}
		out.Concurrency = &config.ConcurrencyPolicy{
			Group:            w.Concurrency.Group,
			CancelInProgress: w.Concurrency.CancelInProgress,
		}
	}

	return out, nil
}

// translateJob converts an HCL job block into the agnostic model.
func (l *Loader) translateJob(j *schema.Job) *config.Job {
	job := &config.Job{
		Name:     j.Name,
		Template: j.Template,
		Needs:    j.Needs,
		With:     l.extractBodyAttributes(j.With),
		Uses:     l.extractBodyAttributes(j.Uses),
	}
	for _, m := range j.Matrix {
		job.Matrix = append(job.Matrix, &config.MatrixEntry{
			Config:    m.Config,
			Shard:     m.Shard,
			NumShards: m.NumShards,
			Runner:    m.Runner,
		})
	}
	return job
}

// translateService converts an HCL service block into the agnostic model.
func (l *Loader) translateService(s *schema.Service) *config.Service {
	return &config.Service{
		ServiceType: s.ServiceType,
		Name:        s.Name,
		Arguments:   l.extractBodyAttributes(s.Arguments),
	}
}

// translateInputDefinition processes a single input block, handling its
// default value and type expression.
func translateInputDefinition(ctx context.Context, in *schema.InputDefinition, ownerKind, ownerName string) (*config.InputDefinition, error) {
	var defaultVal *cty.Value
	var isOptional bool

	if in.Default != nil && !in.Default.IsNull() {
		defaultVal = in.Default
		isOptional = true
	}

	parsedType, err := typeExprToCtyType(ctx, in.Type)
	if err != nil {
		return nil, fmt.Errorf("in %s '%s', input '%s': %w", ownerKind, ownerName, in.Name, err)
	}

	return &config.InputDefinition{
		Name:        in.Name,
		Type:        parsedType,
		Description: in.Description,
		Default:     defaultVal,
		Optional:    isOptional,
	}, nil
}

// translateTemplateDefinition converts an HCL template manifest into the agnostic model.
func (l *Loader) translateTemplateDefinition(ctx context.Context, s *schema.TemplateDefinition) (*config.TemplateDefinition, error) {
	t := &config.TemplateDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
		Uses:        make(map[string]*config.UsesDefinition),
	}
	if s.Lifecycle != nil {
		t.Lifecycle = &config.Lifecycle{OnRun: s.Lifecycle.OnRun}
	}

	for _, in := range s.Inputs {
		translated, err := translateInputDefinition(ctx, in, "template", s.Type)
		if err != nil {
			return nil, err
		}
		t.Inputs[in.Name] = translated
	}

	for _, out := range s.Outputs {
		parsedType, err := typeExprToCtyType(ctx, out.Type)
		if err != nil {
			return nil, fmt.Errorf("in template '%s', output '%s': %w", s.Type, out.Name, err)
		}
		t.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Type:        parsedType,
			Description: out.Description,
		}
	}

	for _, use := range s.Uses {
		t.Uses[use.LocalName] = &config.UsesDefinition{
			LocalName:   use.LocalName,
			ServiceType: use.ServiceType,
		}
	}
	return t, nil
}

// translateServiceTypeDefinition converts an HCL servicetype manifest into the agnostic model.
func (l *Loader) translateServiceTypeDefinition(ctx context.Context, s *schema.ServiceTypeDefinition) (*config.ServiceTypeDefinition, error) {
	def := &config.ServiceTypeDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
	}
	if s.Lifecycle != nil {
		def.Lifecycle = &config.ServiceLifecycle{Create: s.Lifecycle.Create, Destroy: s.Lifecycle.Destroy}
	}

	for _, in := range s.Inputs {
		translated, err := translateInputDefinition(ctx, in, "servicetype", s.Type)
		if err != nil {
			return nil, err
		}
		def.Inputs[in.Name] = translated
	}

	for _, out := range s.Outputs {
		parsedType, err := typeExprToCtyType(ctx, out.Type)
		if err != nil {
			return nil, fmt.Errorf("in servicetype '%s', output '%s': %w", s.Type, out.Name, err)
		}
		def.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Type:        parsedType,
			Description: out.Description,
		}
	}
	return def, nil
}

// extractBodyAttributes flattens an attribute-only block body into a map of
// named expressions, leaving evaluation to the executor.
func (l *Loader) extractBodyAttributes(block any) map[string]hcl.Expression {
	if block == nil {
		return nil
	}
	var body hcl.Body
	switch b := block.(type) {
	case *schema.WithArgs:
		if b == nil {
			return nil
		}
		body = b.Body
	case *schema.UsesBlock:
		if b == nil {
			return nil
		}
		body = b.Body
	default:
		return nil
	}
	if body == nil {
		return nil
	}
	attrs, _ := body.JustAttributes()
	if attrs == nil {
		return nil
	}
	exprMap := make(map[string]hcl.Expression)
	for name, attr := range attrs {
		exprMap[name] = attr.Expr
	}
	return exprMap
}
