// Package executor runs a built dependency graph with a pool of concurrent
// workers: jobs dispatch to their template handlers, services are created on
// demand and destroyed once their last dependent finishes, and any failure
// cancels the run and skips everything downstream.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/dag"
	"github.com/conveyorci/conveyor/internal/registry"
)

// Executor orchestrates the end-to-end execution of a graph.
type Executor struct {
	Graph            *dag.Graph
	wg               sync.WaitGroup
	serviceInstances sync.Map
	cleanupStack     []func()
	cleanupMutex     sync.Mutex
	registry         *registry.Registry
	numWorkers       int
	converter        config.Converter
	baseCtx          *hcl.EvalContext
}

// New creates a new graph executor. baseCtx supplies the run-scoped
// variables (workflow.*, trigger.*) every expression may reference.
func New(
	graph *dag.Graph,
	numWorkers int,
	reg *registry.Registry,
	converter config.Converter,
	baseCtx *hcl.EvalContext,
) *Executor {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if baseCtx == nil {
		baseCtx = &hcl.EvalContext{}
	}
	return &Executor{
		Graph:      graph,
		numWorkers: numWorkers,
		registry:   reg,
		converter:  converter,
		baseCtx:    baseCtx,
	}
}

// Run executes the entire graph concurrently and returns an error if any
// node fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer e.executeCleanupStack(ctx)

	readyChan := make(chan *dag.Node, len(e.Graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootNodeCount := 0
	for _, node := range e.Graph.Nodes {
		if node.DepCount() == 0 {
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.Graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)

	var failedNodes []string
	var rootCauseError error
	for _, n := range e.Graph.Nodes {
		if n.GetState() != dag.Failed {
			continue
		}
		logger.Error("Node failed execution.", "nodeID", n.ID, "error", n.Error)
		// A "skipped" error is a symptom, not a cause.
		if n.Error != nil && !strings.HasPrefix(n.Error.Error(), "skipped") && !errors.Is(n.Error, context.Canceled) {
			failedNodes = append(failedNodes, n.ID)
			if rootCauseError == nil {
				rootCauseError = n.Error
			}
		}
	}

	if rootCauseError != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	return nil
}

// pushCleanup records a service destruction function to be executed when the
// run ends, in reverse creation order.
func (e *Executor) pushCleanup(f func()) {
	e.cleanupMutex.Lock()
	defer e.cleanupMutex.Unlock()
	e.cleanupStack = append(e.cleanupStack, f)
}

// executeCleanupStack destroys any services that are still alive. Services
// already destroyed by the efficient per-node path are protected by their
// node's destroy-once gate.
func (e *Executor) executeCleanupStack(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	e.cleanupMutex.Lock()
	stack := e.cleanupStack
	e.cleanupStack = nil
	e.cleanupMutex.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i]()
	}
	logger.Debug("Cleanup stack executed.", "count", len(stack))
}

// skipDependents transitively marks every dependent of a failed node as
// skipped. Skipped nodes were never queued (their dependency counters still
// hold), so each newly skipped node releases its own wait-group slot here.
func (e *Executor) skipDependents(ctx context.Context, n *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.Dependents {
		if dependent.Skip(fmt.Errorf("skipped: dependency %q failed", n.ID)) {
			logger.Warn("Skipping node due to failed dependency.", "nodeID", dependent.ID, "failed", n.ID)
			e.skipDependents(ctx, dependent)
			e.wg.Done()
		}
	}
}
