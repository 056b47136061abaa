package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conveyorci/conveyor/internal/app"
	"github.com/conveyorci/conveyor/internal/hclconf"
	"github.com/conveyorci/conveyor/internal/registry"
	"github.com/conveyorci/conveyor/internal/testutil"
)

// cancelTestModule provides a handler that cancels the run from inside a job
// and one that must never execute afterwards.
type cancelTestModule struct {
	cancel   context.CancelFunc
	afterRan atomic.Bool
}

func (m *cancelTestModule) Register(r *registry.Registry) {
	r.RegisterTemplate("OnRunTrip", &registry.RegisteredTemplate{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			m.cancel()
			return nil, nil
		},
	})
	r.RegisterTemplate("OnRunAfter", &registry.RegisteredTemplate{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			m.afterRan.Store(true)
			return nil, nil
		},
	})
}

func TestCancellation_CancelledRunTerminatesAndSkipsPendingJobs(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"modules/cancel.hcl": `
            template "trip" {
              lifecycle { on_run = "OnRunTrip" }
            }

            template "after" {
              lifecycle { on_run = "OnRunAfter" }
            }
        `,
		"pipeline/main.hcl": `
            job "a" {
              template = "trip"
            }

            job "b" {
              template = "after"
              needs    = ["a"]
            }

            job "c" {
              template = "after"
              needs    = ["b"]
            }
        `,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mockModule := &cancelTestModule{cancel: cancel}

	result := testutil.RunIntegrationTestWithContext(ctx, t, files, mockModule)

	// The run must come back instead of hanging on the never-queued tail of
	// the chain: a cancelled node releases its dependents' wait-group slots
	// the same way a failed node does.
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "run aborted")

	testutil.AssertJobRan(t, result, "a")
	assert.False(t, mockModule.afterRan.Load(), "jobs after the cancellation must not execute")
	assert.Contains(t, result.LogOutput, "Skipping node, run was cancelled.")
	testutil.AssertJobSkipped(t, result, "c")
}

// preemptTestModule blocks its first invocation until the run context is
// cancelled; later invocations return immediately.
type preemptTestModule struct {
	started chan struct{}
	calls   atomic.Int32
}

func (m *preemptTestModule) Register(r *registry.Registry) {
	r.RegisterTemplate("OnRunBlock", &registry.RegisteredTemplate{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			if m.calls.Add(1) == 1 {
				close(m.started)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return nil, nil
		},
	})
}

func TestCancellation_NewerRunPreemptsInProgressRun(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	pipelineDir := filepath.Join(tmpDir, "pipeline")
	modulesDir := filepath.Join(tmpDir, "modules")
	require.NoError(t, os.Mkdir(pipelineDir, 0755))
	require.NoError(t, os.Mkdir(modulesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(modulesDir, "block.hcl"), []byte(`
        template "block" {
          lifecycle { on_run = "OnRunBlock" }
        }
    `), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(pipelineDir, "main.hcl"), []byte(`
        workflow "pull" {
          on {
            dispatch {}
          }

          concurrency {
            group              = "${workflow.name}-${trigger.ref}"
            cancel_in_progress = true
          }
        }

        job "build" {
          template = "block"
        }
    `), 0644))

	appConfig, err := app.NewConfig(app.Config{
		PipelinePath: pipelineDir,
		ModulesPath:  modulesDir,
		EventKind:    "dispatch",
		Ref:          "main",
		RefType:      "branch",
		LogLevel:     "debug",
		LogFormat:    "text",
		WorkerCount:  2,
	})
	require.NoError(t, err)

	mockModule := &preemptTestModule{started: make(chan struct{})}
	logBuffer := &testutil.SafeBuffer{}
	testApp := app.NewApp(logBuffer, appConfig, hclconf.NewLoader(), mockModule)

	firstErrCh := make(chan error, 1)
	go func() {
		firstErrCh <- testApp.Run(context.Background())
	}()
	<-mockModule.started

	// Same workflow, same ref: the second run lands in the same concurrency
	// group and cancels the one still in progress.
	secondErr := testApp.Run(context.Background())
	require.NoError(t, secondErr)

	select {
	case firstErr := <-firstErrCh:
		require.Error(t, firstErr)
		assert.Contains(t, firstErr.Error(), "run aborted")
	case <-time.After(10 * time.Second):
		t.Fatal("preempted run did not terminate")
	}

	logs := logBuffer.String()
	assert.Contains(t, logs, "Cancelling in-progress run superseded by a newer run.")
	assert.Contains(t, logs, "state=cancelled", "the preempted run must finish in the cancelled state")
	assert.Contains(t, logs, "state=succeeded", "the superseding run must finish normally")
	assert.Equal(t, 0, testApp.Runs().ActiveCount("pull-main"))
}
