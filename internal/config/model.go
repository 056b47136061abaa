package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of the entire pipeline
// configuration: the workflow policy, the job graph, the service instances,
// and all template manifests the jobs may reference.
type Model struct {
	Workflow     *Workflow
	Jobs         []*Job
	Services     []*Service
	Templates    map[string]*TemplateDefinition
	ServiceTypes map[string]*ServiceTypeDefinition
}

// NewModel returns an empty model with all maps initialized.
func NewModel() *Model {
	return &Model{
		Templates:    make(map[string]*TemplateDefinition),
		ServiceTypes: make(map[string]*ServiceTypeDefinition),
	}
}

// Workflow holds the trigger and concurrency policy for a pipeline.
type Workflow struct {
	Name        string
	Triggers    *Triggers
	Concurrency *ConcurrencyPolicy
}

// Triggers enumerates the events that may start a run of the workflow.
type Triggers struct {
	Push     *PushTrigger
	Schedule []*ScheduleTrigger
	Dispatch bool
}

// PushTrigger matches pushes against branch and tag glob patterns.
type PushTrigger struct {
	Branches []string
	Tags     []string
}

// ScheduleTrigger fires on a cron schedule.
type ScheduleTrigger struct {
	Cron string
}

// ConcurrencyPolicy describes how overlapping runs of the same workflow are
// serialized. Group is an expression over workflow.* and trigger.* variables;
// runs whose group keys collide are subject to the cancellation policy.
type ConcurrencyPolicy struct {
	Group            hcl.Expression
	CancelInProgress bool
}

// Job is the format-agnostic representation of a `job` block: a named
// invocation of a reusable template with typed parameters.
type Job struct {
	Name     string
	Template string
	Needs    []string
	With     map[string]hcl.Expression
	Uses     map[string]hcl.Expression
	Matrix   []*MatrixEntry
}

// MatrixEntry is one parallel execution of a job: a configuration label plus
// a 1-based shard position out of NumShards, optionally pinned to a specific
// runner label.
type MatrixEntry struct {
	Config    string
	Shard     int
	NumShards int
	Runner    string
}

// Service is the format-agnostic representation of a `service` block: a
// stateful instance of a service type, shared by jobs through `uses`.
type Service struct {
	ServiceType string
	Name        string
	Arguments   map[string]hcl.Expression
}

// --- Template manifest models ---

// TemplateDefinition is the typed contract of a reusable job template: the
// inputs a job must supply, the outputs dependents may consume, and the Go
// handler bound to its run lifecycle.
type TemplateDefinition struct {
	Type        string
	Description string
	Lifecycle   *Lifecycle
	Inputs      map[string]*InputDefinition
	Outputs     map[string]*OutputDefinition
	Uses        map[string]*UsesDefinition
}

// ServiceTypeDefinition is the manifest of a stateful service type.
type ServiceTypeDefinition struct {
	Type        string
	Description string
	Lifecycle   *ServiceLifecycle
	Inputs      map[string]*InputDefinition
	Outputs     map[string]*OutputDefinition
}

// Lifecycle maps a template's run event to a Go handler name.
type Lifecycle struct {
	OnRun string
}

// ServiceLifecycle maps a service type's events to Go handler names.
type ServiceLifecycle struct {
	Create  string
	Destroy string
}

// InputDefinition defines a single input parameter of a template or service type.
type InputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Optional    bool
}

// OutputDefinition defines a single output value a template declares.
type OutputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
}

// UsesDefinition defines a service dependency a template requires.
type UsesDefinition struct {
	LocalName   string
	ServiceType string
}
