// Package schema declares the HCL decoding structs for pipeline files and
// template manifests. These are the raw, format-specific shapes; the hclconf
// package translates them into the agnostic config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// --- Pipeline structures ---

// WithArgs represents the content of the 'with' block within a job.
type WithArgs struct {
	Body hcl.Body `hcl:",remain"`
}

// UsesBlock represents the content of the 'uses' block within a job.
type UsesBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// MatrixBlock is one parallel execution entry declared inside a job.
type MatrixBlock struct {
	Config    string `hcl:"config,optional"`
	Shard     int    `hcl:"shard,optional"`
	NumShards int    `hcl:"num_shards,optional"`
	Runner    string `hcl:"runner,optional"`
}

// Job represents a `job` block from a pipeline file: a named invocation of a
// reusable template.
type Job struct {
	Name     string         `hcl:"name,label"`
	Template string         `hcl:"template"`
	Needs    []string       `hcl:"needs,optional"`
	With     *WithArgs      `hcl:"with,block"`
	Uses     *UsesBlock     `hcl:"uses,block"`
	Matrix   []*MatrixBlock `hcl:"matrix,block"`
}

// Service represents a `service` block: a managed, stateful instance of a
// service type shared by jobs.
type Service struct {
	ServiceType string    `hcl:"service_type,label"`
	Name        string    `hcl:"instance_name,label"`
	Arguments   *WithArgs `hcl:"arguments,block"`
}

// PushBlock matches push events against branch and tag patterns.
type PushBlock struct {
	Branches []string `hcl:"branches,optional"`
	Tags     []string `hcl:"tags,optional"`
}

// ScheduleBlock fires the workflow on a cron schedule.
type ScheduleBlock struct {
	Cron string `hcl:"cron"`
}

// DispatchBlock enables manual runs of the workflow.
type DispatchBlock struct{}

// OnBlock enumerates the workflow's triggers.
type OnBlock struct {
	Push     *PushBlock       `hcl:"push,block"`
	Schedule []*ScheduleBlock `hcl:"schedule,block"`
	Dispatch *DispatchBlock   `hcl:"dispatch,block"`
}

// ConcurrencyBlock declares the run serialization policy. The group attribute
// stays an expression so it can reference workflow.* and trigger.* variables.
type ConcurrencyBlock struct {
	Group            hcl.Expression `hcl:"group"`
	CancelInProgress bool           `hcl:"cancel_in_progress,optional"`
}

// Workflow represents the top-level `workflow` block of a pipeline.
type Workflow struct {
	Name        string            `hcl:"name,label"`
	On          *OnBlock          `hcl:"on,block"`
	Concurrency *ConcurrencyBlock `hcl:"concurrency,block"`
}

// --- Template manifest schemas ---

// Lifecycle maps a template's run event to a registered Go handler.
type Lifecycle struct {
	OnRun string `hcl:"on_run"`
}

// ServiceLifecycle maps a service type's create and destroy events to
// registered Go handlers.
type ServiceLifecycle struct {
	Create  string `hcl:"create"`
	Destroy string `hcl:"destroy"`
}

// InputDefinition defines a single input parameter of a template or service type.
type InputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type,optional"`
	Description string         `hcl:"description,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
}

// OutputDefinition defines a single output value produced by a template.
type OutputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type,optional"`
	Description string         `hcl:"description,optional"`
}

// UsesDefinition defines a service dependency required by a template.
type UsesDefinition struct {
	LocalName   string `hcl:"local_name,label"`
	ServiceType string `hcl:"service_type"`
}

// TemplateDefinition represents the HCL manifest of a reusable job template.
type TemplateDefinition struct {
	Type        string              `hcl:"type,label"`
	Description string              `hcl:"description,optional"`
	Lifecycle   *Lifecycle          `hcl:"lifecycle,block"`
	Inputs      []*InputDefinition  `hcl:"input,block"`
	Outputs     []*OutputDefinition `hcl:"output,block"`
	Uses        []*UsesDefinition   `hcl:"uses,block"`
}

// ServiceTypeDefinition represents the HCL manifest of a stateful service type.
type ServiceTypeDefinition struct {
	Type        string              `hcl:"type,label"`
	Description string              `hcl:"description,optional"`
	Lifecycle   *ServiceLifecycle   `hcl:"lifecycle,block"`
	Inputs      []*InputDefinition  `hcl:"input,block"`
	Outputs     []*OutputDefinition `hcl:"output,block"`
}
