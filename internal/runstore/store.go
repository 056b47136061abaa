// Package runstore tracks pipeline runs in memory, keyed by concurrency
// group. Starting a run in a group whose policy cancels in-progress work
// cancels every older active run of that group, so redundant runs on the
// same ref never execute concurrently.
package runstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conveyorci/conveyor/internal/ctxlog"
)

// State is the lifecycle state of a run.
type State int

const (
	Running State = iota
	Succeeded
	Failed
	Cancelled
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Run is a single execution of a workflow.
type Run struct {
	ID         uuid.UUID
	Workflow   string
	Group      string
	State      State
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time

	cancel context.CancelFunc
}

// Store is a concurrency-safe registry of runs.
type Store struct {
	mu     sync.Mutex
	runs   map[uuid.UUID]*Run
	active map[string][]*Run // active runs per concurrency group
}

// New creates an empty run store.
func New() *Store {
	return &Store{
		runs:   make(map[uuid.UUID]*Run),
		active: make(map[string][]*Run),
	}
}

// Begin registers a new run in the given concurrency group and returns a
// context that is cancelled if a newer run of the same group preempts it.
// When cancelInProgress is set, every older active run of the group is
// cancelled first.
func (s *Store) Begin(ctx context.Context, workflow, group string, cancelInProgress bool) (context.Context, *Run) {
	logger := ctxlog.FromContext(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:        uuid.New(),
		Workflow:  workflow,
		Group:     group,
		State:     Running,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cancelInProgress {
		for _, older := range s.active[group] {
			logger.Info("Cancelling in-progress run superseded by a newer run.",
				"group", group, "cancelled_run", older.ID, "new_run", run.ID)
			older.State = Cancelled
			older.FinishedAt = time.Now()
			older.cancel()
		}
		s.active[group] = nil
	}

	s.runs[run.ID] = run
	s.active[group] = append(s.active[group], run)
	return runCtx, run
}

// Finish records the terminal state of a run and removes it from its group's
// active set. A run already cancelled by a newer run keeps its Cancelled state.
func (s *Store) Finish(run *Run, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.State == Running {
		if err != nil {
			run.State = Failed
			run.Err = err
		} else {
			run.State = Succeeded
		}
		run.FinishedAt = time.Now()
	}
	run.cancel()

	remaining := s.active[run.Group][:0]
	for _, r := range s.active[run.Group] {
		if r.ID != run.ID {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) == 0 {
		delete(s.active, run.Group)
	} else {
		s.active[run.Group] = remaining
	}
}

// Get returns the run with the given ID, or nil.
func (s *Store) Get(id uuid.UUID) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// ActiveCount returns the number of active runs in a group.
func (s *Store) ActiveCount(group string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active[group])
}
