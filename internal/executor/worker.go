package executor

import (
	"context"
	"time"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/dag"
	"github.com/conveyorci/conveyor/internal/metrics"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *dag.Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", n.ID)

		if ctx.Err() != nil {
			// A skipped node still owns its wait-group slot and its
			// dependents' slots: they will never be queued now.
			if n.Skip(ctx.Err()) {
				workerLogger.Warn("Skipping node, run was cancelled.")
				metrics.NodesTotal.WithLabelValues(nodeKind(n), "skipped").Inc()
				e.skipDependents(ctx, n)
				e.wg.Done()
			}
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		n.SetState(dag.Running)
		started := time.Now()

		var err error
		switch n.Type {
		case dag.ServiceNode:
			err = e.runServiceNode(ctx, n)
		case dag.JobNode:
			err = e.runJobNode(ctx, n)
		}

		if err != nil {
			workerLogger.Error("Node execution failed.", "error", err)
			n.SetState(dag.Failed)
			n.Error = err
			metrics.NodesTotal.WithLabelValues(nodeKind(n), "failed").Inc()
			cancel()
			e.skipDependents(ctx, n)
			e.wg.Done()
			continue
		}

		workerLogger.Debug("Node execution succeeded.")
		n.SetState(dag.Done)
		metrics.NodesTotal.WithLabelValues(nodeKind(n), "done").Inc()
		if n.Type == dag.JobNode {
			metrics.JobDuration.Observe(time.Since(started).Seconds())
		}

		for _, dependent := range n.Dependents {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.ID)
				readyChan <- dependent
			}
		}

		// A finished job releases its services; the last dependent triggers
		// destruction without waiting for the end of the run.
		if n.Type == dag.JobNode {
			for _, dep := range n.Deps {
				if dep.Type == dag.ServiceNode && dep.DecrementDescendantCount() == 0 {
					workerLogger.Debug("Scheduling efficient destruction for service.", "serviceID", dep.ID)
					go e.destroyService(ctx, dep)
				}
			}
		}

		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

func nodeKind(n *dag.Node) string {
	if n.Type == dag.ServiceNode {
		return "service"
	}
	return "job"
}
