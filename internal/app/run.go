package app

import (
	"context"
	"fmt"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/dag"
	"github.com/conveyorci/conveyor/internal/executor"
	"github.com/conveyorci/conveyor/internal/lint"
	"github.com/conveyorci/conveyor/internal/metrics"
	"github.com/conveyorci/conveyor/internal/trigger"
)

// Run executes the main application logic: lint the pipeline, match the
// trigger event, and execute the job graph under the workflow's concurrency
// policy.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.appConfig.HealthcheckPort)
	}

	diags := lint.Check(a.config)
	for _, d := range diags {
		if d.Severity == lint.Warning {
			a.logger.Warn("Pipeline check warning.", "subject", d.Subject, "summary", d.Summary)
		}
	}
	if a.appConfig.LintOnly {
		return a.reportDiagnostics(diags)
	}
	if diags.HasErrors() {
		return fmt.Errorf("pipeline check failed: %w", diags)
	}

	ev, err := a.triggerEvent()
	if err != nil {
		return err
	}

	workflowName := "default"
	group := ""
	cancelInProgress := false
	if a.config.Workflow != nil {
		workflowName = a.config.Workflow.Name
		if !trigger.Matches(a.config.Workflow.Triggers, ev) {
			a.logger.Info("Event does not match any workflow trigger, nothing to run.",
				"workflow", workflowName, "event", ev.Kind.String(), "ref", ev.Ref)
			return nil
		}
		group, err = trigger.GroupKey(a.config.Workflow, ev)
		if err != nil {
			return fmt.Errorf("failed to resolve concurrency group: %w", err)
		}
		if a.config.Workflow.Concurrency != nil {
			cancelInProgress = a.config.Workflow.Concurrency.CancelInProgress
		}
	}

	runCtx, run := a.runStore.Begin(ctx, workflowName, group, cancelInProgress)
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()
	a.logger.Info("🚀 Starting run", "run_id", run.ID, "workflow", workflowName, "group", group)

	runErr := a.execute(runCtx, ev)
	a.runStore.Finish(run, runErr)
	metrics.RunsTotal.WithLabelValues(run.State.String()).Inc()
	a.logger.Info("🏁 Run finished", "run_id", run.ID, "state", run.State.String())

	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	return nil
}

// execute builds the dependency graph and runs it.
func (a *App) execute(ctx context.Context, ev trigger.Event) error {
	a.logger.Debug("Building dependency graph from config model...")
	graph, err := dag.Build(ctx, a.config)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

	if len(graph.Nodes) == 0 {
		a.logger.Warn("No nodes found in graph, execution not required.")
		return nil
	}

	baseCtx := trigger.EvalContext(a.workflowName(), ev)

	a.logger.Info("🚀 Starting concurrent execution...")
	exec := executor.New(graph, a.appConfig.WorkerCount, a.registry, a.converter, baseCtx)
	return exec.Run(ctx)
}

// triggerEvent builds the run's trigger event from the app configuration.
// An unset event kind defaults to a manual dispatch.
func (a *App) triggerEvent() (trigger.Event, error) {
	kind := trigger.Dispatch
	if a.appConfig.EventKind != "" {
		parsed, err := trigger.ParseKind(a.appConfig.EventKind)
		if err != nil {
			return trigger.Event{}, err
		}
		kind = parsed
	}

	refType := trigger.Branch
	if a.appConfig.RefType != "" {
		parsed, err := trigger.ParseRefType(a.appConfig.RefType)
		if err != nil {
			return trigger.Event{}, err
		}
		refType = parsed
	}

	return trigger.Event{Kind: kind, Ref: a.appConfig.Ref, RefType: refType}, nil
}

func (a *App) workflowName() string {
	if a.config.Workflow != nil {
		return a.config.Workflow.Name
	}
	return "default"
}

// reportDiagnostics prints every diagnostic to the app's output writer and
// returns an error when any of them is an error.
func (a *App) reportDiagnostics(diags lint.Diagnostics) error {
	for _, d := range diags {
		fmt.Fprintln(a.outW, d.String())
	}
	if diags.HasErrors() {
		return fmt.Errorf("pipeline check failed: %w", diags)
	}
	fmt.Fprintln(a.outW, "pipeline check passed")
	return nil
}
