package integration_tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conveyorci/conveyor/internal/registry"
	"github.com/conveyorci/conveyor/internal/testutil"
)

// recorder is a stateful service instance shared by job handlers.
type recorder struct {
	mu     sync.Mutex
	prefix string
	notes  []string
}

func (r *recorder) record(note string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, r.prefix+":"+note)
}

type recorderInput struct {
	Prefix string `cv:"prefix"`
}

type recordJobInput struct {
	Note string `cv:"note"`
}

type recordJobDeps struct {
	Rec *recorder `cv:"rec"`
}

// serviceTestModule wires a recorder service type plus a job template that
// depends on it.
type serviceTestModule struct {
	created  *recorder
	destroys atomic.Int32
}

func (m *serviceTestModule) Register(r *registry.Registry) {
	r.RegisterServiceHandler("CreateRecorder", &registry.RegisteredService{
		NewInput: func() any { return new(recorderInput) },
		CreateFn: func(ctx context.Context, input *recorderInput) (*recorder, error) {
			m.created = &recorder{prefix: input.Prefix}
			return m.created, nil
		},
	})
	r.RegisterServiceHandler("DestroyRecorder", &registry.RegisteredService{
		DestroyFn: func(r *recorder) {
			m.destroys.Add(1)
		},
	})
	r.RegisterTemplate("OnRunRecord", &registry.RegisteredTemplate{
		NewInput: func() any { return new(recordJobInput) },
		NewDeps:  func() any { return new(recordJobDeps) },
		Fn: func(ctx context.Context, deps *recordJobDeps, input *recordJobInput) (any, error) {
			deps.Rec.record(input.Note)
			return nil, nil
		},
	})
}

func TestService_SharedInstanceIsInjectedAndDestroyedOnce(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"modules/recorder.hcl": `
            servicetype "recorder" {
              lifecycle {
                create  = "CreateRecorder"
                destroy = "DestroyRecorder"
              }

              input "prefix" {
                type    = string
                default = ""
              }
            }

            template "record" {
              lifecycle { on_run = "OnRunRecord" }

              input "note" {
                type = string
              }

              uses "rec" {
                service_type = "recorder"
              }
            }
        `,
		"pipeline/main.hcl": `
            job "lint" {
              template = "record"
              with {
                note = "lint passed"
              }
              uses {
                rec = service.recorder.shared
              }
            }

            job "build" {
              template = "record"
              with {
                note = "build passed"
              }
              uses {
                rec = service.recorder.shared
              }
            }

            service "recorder" "shared" {
              arguments {
                prefix = "ci"
              }
            }
        `,
	}
	mockModule := &serviceTestModule{}

	result := testutil.RunIntegrationTest(t, files, mockModule)

	require.NoError(t, result.Err)
	testutil.AssertJobRan(t, result, "lint")
	testutil.AssertJobRan(t, result, "build")

	require.NotNil(t, mockModule.created, "create handler should have run")
	notes := append([]string(nil), mockModule.created.notes...)
	sort.Strings(notes)
	assert.Equal(t, []string{"ci:build passed", "ci:lint passed"}, notes,
		"both jobs must share the same live instance")

	assert.Equal(t, int32(1), mockModule.destroys.Load(), "destroy must fire exactly once")
	assert.Contains(t, result.LogOutput, "🔥 Destroying service")
}

func TestService_HyphenatedInstanceNameBindsViaIndexSyntax(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"modules/recorder.hcl": `
            servicetype "recorder" {
              lifecycle {
                create  = "CreateRecorder"
                destroy = "DestroyRecorder"
              }

              input "prefix" {
                type    = string
                default = ""
              }
            }

            template "record" {
              lifecycle { on_run = "OnRunRecord" }

              input "note" {
                type = string
              }

              uses "rec" {
                service_type = "recorder"
              }
            }
        `,
		"pipeline/main.hcl": `
            job "lint" {
              template = "record"
              with {
                note = "done"
              }
              uses {
                rec = service.recorder["shared-prod"]
              }
            }

            service "recorder" "shared-prod" {
              arguments {
                prefix = "ci"
              }
            }
        `,
	}
	mockModule := &serviceTestModule{}

	result := testutil.RunIntegrationTest(t, files, mockModule)

	require.NoError(t, result.Err)
	testutil.AssertJobRan(t, result, "lint")
	require.NotNil(t, mockModule.created)
	assert.Equal(t, []string{"ci:done"}, mockModule.created.notes)
	assert.Equal(t, int32(1), mockModule.destroys.Load())
}

func TestService_MissingServiceTypeFailsTheCheck(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"pipeline/main.hcl": `
            service "ghost" "shared" {}
        `,
	}

	result := testutil.RunIntegrationTest(t, files)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "pipeline check failed")
	assert.Contains(t, result.Err.Error(), "ghost")
}
