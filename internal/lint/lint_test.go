package lint

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/conveyorci/conveyor/internal/config"
)

// parseExpr is a test helper for building hcl expressions from source.
func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "failed to parse test expression %q: %s", src, diags)
	return expr
}

// testModel builds a model with one "build" template that requires a
// "command" input and declares an "artifact" output.
func testModel(jobs ...*config.Job) *config.Model {
	model := config.NewModel()
	model.Jobs = jobs
	model.Templates["build"] = &config.TemplateDefinition{
		Type:      "build",
		Lifecycle: &config.Lifecycle{OnRun: "OnRunBuild"},
		Inputs: map[string]*config.InputDefinition{
			"command": {Name: "command", Type: cty.String},
		},
		Outputs: map[string]*config.OutputDefinition{
			"artifact": {Name: "artifact", Type: cty.String},
		},
	}
	model.Workflow = &config.Workflow{
		Name:     "test",
		Triggers: &config.Triggers{Dispatch: true},
	}
	return model
}

func withCommand(t *testing.T) map[string]hcl.Expression {
	return map[string]hcl.Expression{"command": parseExpr(t, `"make"`)}
}

func TestCheck_CleanModel(t *testing.T) {
	t.Parallel()

	model := testModel(
		&config.Job{Name: "compile", Template: "build", With: withCommand(t)},
		&config.Job{Name: "test", Template: "build", Needs: []string{"compile"}, With: withCommand(t)},
	)

	diags := Check(model)
	assert.False(t, diags.HasErrors(), "unexpected findings: %s", diags.Error())
}

func TestCheck_DuplicateJobNames(t *testing.T) {
	t.Parallel()

	model := testModel(
		&config.Job{Name: "compile", Template: "build", With: withCommand(t)},
		&config.Job{Name: "compile", Template: "build", With: withCommand(t)},
	)

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "duplicate job name")
}

func TestCheck_UndefinedAndSelfNeeds(t *testing.T) {
	t.Parallel()

	model := testModel(
		&config.Job{Name: "a", Template: "build", Needs: []string{"ghost", "a"}, With: withCommand(t)},
	)

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), `needs undefined job "ghost"`)
	assert.Contains(t, diags.Error(), "job cannot need itself")
}

func TestCheck_UnknownTemplate(t *testing.T) {
	t.Parallel()

	model := testModel(&config.Job{Name: "a", Template: "nope"})

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), `references unknown template "nope"`)
}

func TestCheck_ArgumentContract(t *testing.T) {
	t.Parallel()

	model := testModel(
		// Missing the required "command" argument, and passing an undeclared one.
		&config.Job{Name: "a", Template: "build", With: map[string]hcl.Expression{
			"typo": parseExpr(t, `"x"`),
		}},
	)

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), `argument "typo" is not declared`)
	assert.Contains(t, diags.Error(), `missing required argument "command"`)
}

func TestCheck_OutputRefs(t *testing.T) {
	t.Parallel()

	model := testModel(
		&config.Job{Name: "compile", Template: "build", With: withCommand(t)},
		&config.Job{Name: "package", Template: "build", With: map[string]hcl.Expression{
			"command": parseExpr(t, "job.compile.outputs.artifact"),
		}},
		&config.Job{Name: "broken", Template: "build", With: map[string]hcl.Expression{
			"command": parseExpr(t, "job.compile.outputs.no_such_output"),
		}},
		&config.Job{Name: "dangling", Template: "build", With: map[string]hcl.Expression{
			"command": parseExpr(t, "job.ghost.outputs.artifact"),
		}},
	)

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), `undeclared output "no_such_output"`)
	assert.Contains(t, diags.Error(), `outputs of undefined job "ghost"`)
	assert.NotContains(t, diags.Error(), "job package")
}

func TestCheck_MatrixIntegrity(t *testing.T) {
	t.Parallel()

	model := testModel(
		&config.Job{Name: "test", Template: "build", With: withCommand(t), Matrix: []*config.MatrixEntry{
			{Config: "default", Shard: 1, NumShards: 3},
			{Config: "default", Shard: 1, NumShards: 3},
		}},
	)

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "duplicate shard index")
	assert.Contains(t, diags.Error(), "not declared")
}

func TestCheck_Services(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.ServiceTypes["cache"] = &config.ServiceTypeDefinition{Type: "cache"}
	model.Services = []*config.Service{
		{ServiceType: "cache", Name: "shared"},
		{ServiceType: "cache", Name: "shared"},
		{ServiceType: "registry", Name: "images"},
	}

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "duplicate service instance")
	assert.Contains(t, diags.Error(), `unknown service type "registry"`)
}

func TestCheck_WorkflowCronAndConcurrency(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.Workflow = &config.Workflow{
		Name: "nightly",
		Triggers: &config.Triggers{
			Schedule: []*config.ScheduleTrigger{{Cron: "bad cron"}},
		},
		Concurrency: &config.ConcurrencyPolicy{Group: parseExpr(t, `""`)},
	}

	diags := Check(model)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "invalid cron expression")
	assert.Contains(t, diags.Error(), "empty string")
}

func TestCheck_MissingWorkflowIsAWarning(t *testing.T) {
	t.Parallel()

	model := testModel()
	model.Workflow = nil

	diags := Check(model)
	assert.False(t, diags.HasErrors())
	require.Len(t, diags, 1)
	assert.Equal(t, Warning, diags[0].Severity)
}
