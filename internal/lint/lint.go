// Package lint statically checks a loaded pipeline model for the consistency
// properties that must hold before a run is attempted: job name uniqueness,
// resolvable needs and template references, shard matrix integrity, template
// argument contracts, and a well-formed concurrency policy.
package lint

import (
	"fmt"
	"strings"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/matrix"
	"github.com/conveyorci/conveyor/internal/trigger"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a single finding against the pipeline configuration.
type Diagnostic struct {
	Severity Severity
	Subject  string // the job, service, or workflow the finding is about
	Summary  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Subject, d.Summary)
}

// Diagnostics is a list of findings.
type Diagnostics []Diagnostic

// HasErrors reports whether any finding is of Error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Error renders all findings as a single multi-line message.
func (ds Diagnostics) Error() string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Check runs every static check against the model and returns all findings.
func Check(model *config.Model) Diagnostics {
	var ds Diagnostics
	ds = append(ds, checkJobNames(model)...)
	ds = append(ds, checkNeeds(model)...)
	ds = append(ds, checkTemplateRefs(model)...)
	ds = append(ds, checkMatrices(model)...)
	ds = append(ds, checkArguments(model)...)
	ds = append(ds, checkOutputRefs(model)...)
	ds = append(ds, checkServices(model)...)
	ds = append(ds, checkWorkflow(model)...)
	return ds
}

// checkJobNames reports duplicate job names.
func checkJobNames(model *config.Model) Diagnostics {
	var ds Diagnostics
	seen := make(map[string]bool)
	for _, job := range model.Jobs {
		if seen[job.Name] {
			ds = append(ds, Diagnostic{
				Severity: Error,
				Subject:  "job " + job.Name,
				Summary:  "duplicate job name",
			})
			continue
		}
		seen[job.Name] = true
	}
	return ds
}

// checkNeeds verifies that every needs entry names another job in the same
// pipeline and that no job needs itself.
func checkNeeds(model *config.Model) Diagnostics {
	var ds Diagnostics
	names := make(map[string]bool, len(model.Jobs))
	for _, job := range model.Jobs {
		names[job.Name] = true
	}
	for _, job := range model.Jobs {
		for _, dep := range job.Needs {
			if dep == job.Name {
				ds = append(ds, Diagnostic{
					Severity: Error,
					Subject:  "job " + job.Name,
					Summary:  "job cannot need itself",
				})
				continue
			}
			if !names[dep] {
				ds = append(ds, Diagnostic{
					Severity: Error,
					Subject:  "job " + job.Name,
					Summary:  fmt.Sprintf("needs undefined job %q", dep),
				})
			}
		}
	}
	return ds
}

// checkTemplateRefs verifies that every job references a loaded template
// manifest with a run lifecycle.
func checkTemplateRefs(model *config.Model) Diagnostics {
	var ds Diagnostics
	for _, job := range model.Jobs {
		def, ok := model.Templates[job.Template]
		if !ok {
			ds = append(ds, Diagnostic{
				Severity: Error,
				Subject:  "job " + job.Name,
				Summary:  fmt.Sprintf("references unknown template %q", job.Template),
			})
			continue
		}
		if def.Lifecycle == nil || def.Lifecycle.OnRun == "" {
			ds = append(ds, Diagnostic{
				Severity: Error,
				Subject:  "job " + job.Name,
				Summary:  fmt.Sprintf("template %q declares no on_run lifecycle handler", job.Template),
			})
		}
	}
	return ds
}

// checkMatrices verifies shard uniqueness and contiguity per configuration.
func checkMatrices(model *config.Model) Diagnostics {
	var ds Diagnostics
	for _, job := range model.Jobs {
		if len(job.Matrix) == 0 {
			continue
		}
		for _, err := range matrix.Validate(job.Name, matrix.Expand(job)) {
			ds = append(ds, Diagnostic{
				Severity: Error,
				Subject:  "job " + job.Name,
				Summary:  err.Error(),
			})
		}
	}
	return ds
}

// checkArguments verifies each job's `with` block against the template's
// declared inputs: unknown argument names are errors, as are missing
// required inputs.
func checkArguments(model *config.Model) Diagnostics {
	var ds Diagnostics
	for _, job := range model.Jobs {
		def, ok := model.Templates[job.Template]
		if !ok {
			continue // reported by checkTemplateRefs
		}
		for name := range job.With {
			if _, declared := def.Inputs[name]; !declared {
				ds = append(ds, Diagnostic{
					Severity: Error,
					Subject:  "job " + job.Name,
					Summary:  fmt.Sprintf("argument %q is not declared by template %q", name, job.Template),
				})
			}
		}
		for name, input := range def.Inputs {
			if input.Optional || input.Default != nil {
				continue
			}
			if _, provided := job.With[name]; !provided {
				ds = append(ds, Diagnostic{
					Severity: Error,
					Subject:  "job " + job.Name,
					Summary:  fmt.Sprintf("missing required argument %q of template %q", name, job.Template),
				})
			}
		}
	}
	return ds
}

// checkOutputRefs verifies that every job.<x>.outputs.<f> expression names an
// output the referenced job's template declares.
func checkOutputRefs(model *config.Model) Diagnostics {
	var ds Diagnostics
	byName := make(map[string]*config.Job, len(model.Jobs))
	for _, job := range model.Jobs {
		byName[job.Name] = job
	}

	for _, job := range model.Jobs {
		for _, expr := range job.With {
			for _, ref := range OutputRefs(expr) {
				target, ok := byName[ref.Job]
				if !ok {
					ds = append(ds, Diagnostic{
						Severity: Error,
						Subject:  "job " + job.Name,
						Summary:  fmt.Sprintf("references outputs of undefined job %q", ref.Job),
					})
					continue
				}
				def, ok := model.Templates[target.Template]
				if !ok {
					continue // reported by checkTemplateRefs
				}
				if _, declared := def.Outputs[ref.Output]; !declared {
					ds = append(ds, Diagnostic{
						Severity: Error,
						Subject:  "job " + job.Name,
						Summary:  fmt.Sprintf("references undeclared output %q of job %q (template %q)", ref.Output, ref.Job, target.Template),
					})
				}
			}
		}
	}
	return ds
}

// checkServices verifies service instance uniqueness and service type resolution.
func checkServices(model *config.Model) Diagnostics {
	var ds Diagnostics
	seen := make(map[string]bool)
	for _, svc := range model.Services {
		id := svc.ServiceType + "." + svc.Name
		if seen[id] {
			ds = append(ds, Diagnostic{
				Severity: Error,
				Subject:  "service " + id,
				Summary:  "duplicate service instance",
			})
			continue
		}
		seen[id] = true
		if _, ok := model.ServiceTypes[svc.ServiceType]; !ok {
			ds = append(ds, Diagnostic{
				Severity: Error,
				Subject:  "service " + id,
				Summary:  fmt.Sprintf("references unknown service type %q", svc.ServiceType),
			})
		}
	}
	return ds
}

// checkWorkflow validates cron expressions and verifies the concurrency
// group expression evaluates to a non-empty string for every trigger kind.
func checkWorkflow(model *config.Model) Diagnostics {
	var ds Diagnostics
	w := model.Workflow
	if w == nil {
		return Diagnostics{{
			Severity: Warning,
			Subject:  "workflow",
			Summary:  "pipeline declares no workflow block; runs require a manual dispatch policy",
		}}
	}

	if w.Triggers != nil {
		for _, s := range w.Triggers.Schedule {
			if err := trigger.ValidateCron(s.Cron); err != nil {
				ds = append(ds, Diagnostic{
					Severity: Error,
					Subject:  "workflow " + w.Name,
					Summary:  err.Error(),
				})
			}
		}
	}

	probes := []trigger.Event{
		{Kind: trigger.Push, Ref: "main", RefType: trigger.Branch},
		{Kind: trigger.Schedule, Ref: "main", RefType: trigger.Branch},
		{Kind: trigger.Dispatch, Ref: "main", RefType: trigger.Branch},
	}
	for _, ev := range probes {
		if _, err := trigger.GroupKey(w, ev); err != nil {
			ds = append(ds, Diagnostic{
				Severity: Error,
				Subject:  "workflow " + w.Name,
				Summary:  err.Error(),
			})
		}
	}
	return ds
}
