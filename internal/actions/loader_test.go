package actions

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/trigger"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const workflowYAML = `
name: pull
on:
  push:
    branches: [main, "release/*"]
    tags: ["v*"]
  schedule:
    - cron: "30 1 * * *"
  workflow_dispatch:
concurrency:
  group: ${{ github.workflow }}-${{ github.ref }}
  cancel-in-progress: true
jobs:
  linux-jammy-build:
    uses: .github/workflows/_linux-build.yml
    with:
      build-environment: linux-jammy
  linux-jammy-test:
    uses: .github/workflows/_linux-test.yml
    needs: linux-jammy-build
    with:
      build-environment: linux-jammy
      docker-image: ${{ needs.linux-jammy-build.outputs.docker_image }}
    strategy:
      matrix:
        include:
          - config: default
            shard: 1
            num_shards: 2
            runner: linux.2xlarge
          - config: default
            shard: 2
            num_shards: 2
            runner: linux.2xlarge
`

func loadYAML(t *testing.T, content string) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pull.yml"), []byte(content), 0644))
	return NewLoader(), dir
}

func TestLoad_ImportsWorkflow(t *testing.T) {
	t.Parallel()

	loader, dir := loadYAML(t, workflowYAML)
	model, converter, err := loader.Load(testContext(), dir)
	require.NoError(t, err)
	require.NotNil(t, converter)

	require.NotNil(t, model.Workflow)
	assert.Equal(t, "pull", model.Workflow.Name)

	triggers := model.Workflow.Triggers
	require.NotNil(t, triggers)
	assert.Equal(t, []string{"main", "release/*"}, triggers.Push.Branches)
	assert.Equal(t, []string{"v*"}, triggers.Push.Tags)
	require.Len(t, triggers.Schedule, 1)
	assert.Equal(t, "30 1 * * *", triggers.Schedule[0].Cron)
	assert.True(t, triggers.Dispatch)

	require.NotNil(t, model.Workflow.Concurrency)
	assert.True(t, model.Workflow.Concurrency.CancelInProgress)
}

func TestLoad_ConcurrencyExpressionIsRewritten(t *testing.T) {
	t.Parallel()

	loader, dir := loadYAML(t, workflowYAML)
	model, _, err := loader.Load(testContext(), dir)
	require.NoError(t, err)

	// The imported group expression must evaluate against the engine's own
	// variable namespaces.
	key, err := trigger.GroupKey(model.Workflow, trigger.Event{
		Kind: trigger.Push, Ref: "main", RefType: trigger.Branch,
	})
	require.NoError(t, err)
	assert.Equal(t, "pull-main", key)
}

func TestLoad_JobsKeepDeclarationOrder(t *testing.T) {
	t.Parallel()

	loader, dir := loadYAML(t, workflowYAML)
	model, _, err := loader.Load(testContext(), dir)
	require.NoError(t, err)

	require.Len(t, model.Jobs, 2)
	assert.Equal(t, "linux-jammy-build", model.Jobs[0].Name)
	assert.Equal(t, "linux-jammy-test", model.Jobs[1].Name)
}

func TestLoad_JobTranslation(t *testing.T) {
	t.Parallel()

	loader, dir := loadYAML(t, workflowYAML)
	model, _, err := loader.Load(testContext(), dir)
	require.NoError(t, err)

	build := model.Jobs[0]
	// The `uses` path maps onto a template type: base name, extension and
	// leading underscore stripped.
	assert.Equal(t, "linux-build", build.Template)
	// Hyphenated input names become underscore names.
	assert.Contains(t, build.With, "build_environment")

	test := model.Jobs[1]
	assert.Equal(t, "linux-test", test.Template)
	assert.Equal(t, []string{"linux-jammy-build"}, test.Needs)
	require.Len(t, test.Matrix, 2)
	assert.Equal(t, 2, test.Matrix[1].Shard)
	assert.Equal(t, 2, test.Matrix[1].NumShards)
	assert.Equal(t, "linux.2xlarge", test.Matrix[1].Runner)
}

func TestLoad_NeedsExpressionsMapOntoJobNamespace(t *testing.T) {
	t.Parallel()

	loader, dir := loadYAML(t, workflowYAML)
	model, _, err := loader.Load(testContext(), dir)
	require.NoError(t, err)

	expr := model.Jobs[1].With["docker_image"]
	require.NotNil(t, expr)

	vars := expr.Variables()
	require.Len(t, vars, 1)
	assert.Equal(t, "job", vars[0].RootName())

	// The rewritten expression evaluates against job.<name>.outputs.<field>.
	val, diags := expr.Value(&hcl.EvalContext{
		Variables: map[string]cty.Value{
			"job": cty.ObjectVal(map[string]cty.Value{
				"linux-jammy-build": cty.ObjectVal(map[string]cty.Value{
					"outputs": cty.ObjectVal(map[string]cty.Value{
						"docker_image": cty.StringVal("img:123"),
					}),
				}),
			}),
		},
	})
	require.False(t, diags.HasErrors(), "evaluation failed: %s", diags)
	assert.Equal(t, cty.StringVal("img:123"), val)
}

func TestLoad_UnsupportedJobShape(t *testing.T) {
	t.Parallel()

	loader, dir := loadYAML(t, `
jobs:
  inline:
    runs-on: ubuntu-latest
`)
	_, _, err := loader.Load(testContext(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only reusable-workflow jobs are supported")
}

func TestTemplateNameFromUses(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "linux-build", templateNameFromUses(".github/workflows/_linux-build.yml"))
	assert.Equal(t, "deploy", templateNameFromUses("./templates/deploy.yaml"))
	assert.Equal(t, "shell", templateNameFromUses("shell"))
}
