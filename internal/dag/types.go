package dag

import (
	"sync"
	"sync/atomic"

	"github.com/conveyorci/conveyor/internal/config"
)

// Graph is the complete dependency graph of a run.
type Graph struct {
	// Nodes stores all nodes, keyed by their unique ID.
	Nodes map[string]*Node
}

// NodeType distinguishes between different kinds of nodes in the graph.
type NodeType int

const (
	// JobNode executes one instance of a job.
	JobNode NodeType = iota
	// ServiceNode manages a stateful service instance.
	ServiceNode
)

// State represents the execution state of a node.
type State int32

const (
	// Pending indicates the node is waiting for its dependencies.
	Pending State = iota
	// Running indicates a worker is currently executing the node.
	Running
	// Done indicates the node completed successfully.
	Done
	// Failed indicates the node failed or was skipped after a failure.
	Failed
)

// Node is a single vertex in the execution graph.
type Node struct {
	// ID is the unique identifier, e.g. "job.linux_test[2]" or
	// "service.http_client.shared".
	ID string
	// Name is the instance name from the configuration.
	Name string
	Type NodeType

	// JobConfig holds the configuration for a job node. Nil for services.
	JobConfig *config.Job
	// Matrix is the matrix entry this instance executes. Nil for unsharded
	// jobs and services.
	Matrix *config.MatrixEntry
	// Index is the instance's position among its job's matrix entries.
	Index int

	// ServiceConfig holds the configuration for a service node. Nil for jobs.
	ServiceConfig *config.Service

	// Deps holds the nodes this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the nodes that depend on this node (successors).
	Dependents map[string]*Node

	// Error stores any error from the node's execution.
	Error error
	// Output stores the result of execution for downstream consumers.
	Output any

	// depCount counts unmet dependencies; the executor unlocks a node when
	// it reaches zero.
	depCount atomic.Int32
	// descendantCount counts a service's job dependents, used for efficient
	// destruction once the last dependent finishes.
	descendantCount atomic.Int32
	state           atomic.Int32
	destroyOnce     sync.Once
	skipOnce        sync.Once
}

// SetInitialCounters seeds the dependency and descendant counters after linking.
func (n *Node) SetInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))
	if n.Type == ServiceNode {
		count := int32(0)
		for _, dep := range n.Dependents {
			if dep.Type == JobNode {
				count++
			}
		}
		n.descendantCount.Store(count)
	}
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns
// the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// DescendantCount atomically returns the number of unfinished job dependents.
func (n *Node) DescendantCount() int32 {
	return n.descendantCount.Load()
}

// DecrementDescendantCount atomically decrements the service descendant counter.
func (n *Node) DecrementDescendantCount() int32 {
	return n.descendantCount.Add(-1)
}

// SetState atomically sets the node's execution state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// GetState atomically retrieves the node's execution state.
func (n *Node) GetState() State {
	return State(n.state.Load())
}

// Destroy executes the given cleanup function exactly once.
func (n *Node) Destroy(f func()) {
	n.destroyOnce.Do(f)
}

// Skip marks the node failed with the given error exactly once, reporting
// whether this call performed the transition.
func (n *Node) Skip(err error) bool {
	skipped := false
	n.skipOnce.Do(func() {
		n.SetState(Failed)
		n.Error = err
		skipped = true
	})
	return skipped
}
