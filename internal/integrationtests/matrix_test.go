package integration_tests

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyorci/conveyor/internal/registry"
	"github.com/conveyorci/conveyor/internal/testutil"
)

// matrixTestModule records which shard each instance executed and what a
// downstream consumer received.
type matrixTestModule struct {
	mu       sync.Mutex
	ran      []string // "config/shard" per executed instance
	consumed string
}

func (m *matrixTestModule) Register(r *registry.Registry) {
	type shardInput struct {
		Config    string `cv:"config"`
		Shard     int    `cv:"shard"`
		NumShards int    `cv:"num_shards"`
	}
	type shardOutput struct {
		Report string `cty:"report"`
	}
	r.RegisterTemplate("OnRunShard", &registry.RegisteredTemplate{
		NewInput:  func() any { return new(shardInput) },
		InputType: reflect.TypeOf(shardInput{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			in := input.(*shardInput)
			m.mu.Lock()
			m.ran = append(m.ran, in.Config+"/"+string(rune('0'+in.Shard)))
			m.mu.Unlock()
			return &shardOutput{Report: in.Config + "-report-" + string(rune('0'+in.Shard))}, nil
		},
	})

	type collectInput struct {
		Report string `cv:"report"`
	}
	r.RegisterTemplate("OnRunCollect", &registry.RegisteredTemplate{
		NewInput:  func() any { return new(collectInput) },
		InputType: reflect.TypeOf(collectInput{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			in := input.(*collectInput)
			m.mu.Lock()
			m.consumed = in.Report
			m.mu.Unlock()
			return nil, nil
		},
	})
}

const matrixManifests = `
    template "sharded" {
      lifecycle { on_run = "OnRunShard" }
      input "config" {
        type = string
      }
      input "shard" {
        type = number
      }
      input "num_shards" {
        type = number
      }
      output "report" {
        type = string
      }
    }

    template "collect" {
      lifecycle { on_run = "OnRunCollect" }
      input "report" {
        type = string
      }
    }
`

func TestMatrix_EveryShardRunsWithItsOwnVariables(t *testing.T) {
	t.Parallel()

	pipelineHCL := `
        job "test" {
          template = "sharded"

          matrix {
            config     = "default"
            shard      = 1
            num_shards = 2
          }
          matrix {
            config     = "default"
            shard      = 2
            num_shards = 2
          }
          matrix {
            config = "nogpu"
          }

          with {
            config     = matrix.config
            shard      = matrix.shard
            num_shards = matrix.num_shards
          }
        }
    `
	files := map[string]string{
		"modules/matrix.hcl": matrixManifests,
		"pipeline/main.hcl":  pipelineHCL,
	}
	mockModule := &matrixTestModule{}

	result := testutil.RunIntegrationTest(t, files, mockModule)

	require.NoError(t, result.Err, "test run should succeed")
	testutil.AssertJobInstanceRan(t, result, "test", 0)
	testutil.AssertJobInstanceRan(t, result, "test", 1)
	testutil.AssertJobInstanceRan(t, result, "test", 2)

	sort.Strings(mockModule.ran)
	require.Equal(t, []string{"default/1", "default/2", "nogpu/1"}, mockModule.ran,
		"each instance should see its own matrix variables")
}

func TestMatrix_DownstreamJobWaitsForAllShardsAndIndexesOutputs(t *testing.T) {
	t.Parallel()

	pipelineHCL := `
        job "test" {
          template = "sharded"

          matrix {
            config     = "default"
            shard      = 1
            num_shards = 2
          }
          matrix {
            config     = "default"
            shard      = 2
            num_shards = 2
          }

          with {
            config     = matrix.config
            shard      = matrix.shard
            num_shards = matrix.num_shards
          }
        }

        job "summarize" {
          template = "collect"

          with {
            report = job.test.outputs[1].report
          }
        }
    `
	files := map[string]string{
		"modules/matrix.hcl": matrixManifests,
		"pipeline/main.hcl":  pipelineHCL,
	}
	mockModule := &matrixTestModule{}

	result := testutil.RunIntegrationTest(t, files, mockModule)

	require.NoError(t, result.Err, "test run should succeed")
	testutil.AssertJobRan(t, result, "summarize")
	require.Equal(t, "default-report-2", mockModule.consumed,
		"the consumer should see shard 2's output at tuple index 1")
}

func TestMatrix_InvalidShardLayoutFailsLint(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"modules/noop.hcl": `
            template "noop" {
              lifecycle { on_run = "NoOp" }
            }
        `,
		"pipeline/main.hcl": `
            job "test" {
              template = "noop"

              matrix {
                config     = "default"
                shard      = 1
                num_shards = 3
              }
            }
        `,
	}

	result := testutil.RunIntegrationTest(t, files, &testutil.NoOpModule{})

	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "not declared")
}
