package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"gopkg.in/yaml.v3"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/fsutil"
	"github.com/conveyorci/conveyor/internal/hclconf"
)

// Loader imports GitHub Actions workflow files and implements the
// config.Loader interface. Module manifests stay in HCL, so the loader
// carries an HCL loader for them and merges both models.
type Loader struct {
	hcl *hclconf.Loader
}

// NewLoader creates a new GitHub Actions configuration loader.
func NewLoader() *Loader {
	return &Loader{hcl: hclconf.NewLoader()}
}

// Load reads every .yml/.yaml workflow file under the given paths, translates
// them into the format-agnostic model, and merges in any HCL manifests found
// alongside. The returned converter is the HCL one: translated values are
// ordinary hcl.Expression, so evaluation and binding are shared with native
// pipelines.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)

	model, converter, err := l.hcl.Load(ctx, paths...)
	if err != nil {
		return nil, nil, err
	}

	files, err := findWorkflowFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered workflow files.", "count", len(files))

	for _, file := range files {
		if err := l.loadWorkflowFile(ctx, file, model); err != nil {
			return nil, nil, err
		}
	}

	return model, converter, nil
}

func findWorkflowFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; !ok {
			files = append(files, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".yml", ".yaml")
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
		} else if ext := filepath.Ext(path); ext == ".yml" || ext == ".yaml" {
			add(path)
		}
	}
	return files, nil
}

func (l *Loader) loadWorkflowFile(ctx context.Context, file string, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read workflow file %s: %w", file, err)
	}

	var wf workflowFile
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		return fmt.Errorf("failed to parse workflow file %s: %w", file, err)
	}

	workflow, err := translateWorkflow(&wf, file)
	if err != nil {
		return err
	}
	if model.Workflow != nil {
		return fmt.Errorf("duplicate workflow %q in %s: workflow %q is already defined", workflow.Name, file, model.Workflow.Name)
	}
	model.Workflow = workflow

	jobs, err := translateJobs(&wf.Jobs, file)
	if err != nil {
		return err
	}
	model.Jobs = append(model.Jobs, jobs...)

	logger.Debug("Imported workflow file.", "file", file, "jobs", len(jobs))
	return nil
}

func translateWorkflow(wf *workflowFile, file string) (*config.Workflow, error) {
	name := wf.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	workflow := &config.Workflow{Name: name}

	if wf.On != nil {
		triggers := &config.Triggers{Dispatch: wf.On.Dispatch}
		if wf.On.Push != nil {
			triggers.Push = &config.PushTrigger{
				Branches: wf.On.Push.Branches,
				Tags:     wf.On.Push.Tags,
			}
		}
		for _, entry := range wf.On.Schedule {
			triggers.Schedule = append(triggers.Schedule, &config.ScheduleTrigger{Cron: entry.Cron})
		}
		workflow.Triggers = triggers
	}

	if wf.Concurrency != nil {
		groupExpr, err := parseValue(wf.Concurrency.Group, file)
		if err != nil {
			return nil, fmt.Errorf("invalid concurrency group in %s: %w", file, err)
		}
		workflow.Concurrency = &config.ConcurrencyPolicy{
			Group:            groupExpr,
			CancelInProgress: wf.Concurrency.CancelInProgress,
		}
	}

	return workflow, nil
}

// translateJobs walks the raw `jobs` mapping node so the declaration order of
// jobs is preserved in the model.
func translateJobs(node *yaml.Node, file string) ([]*config.Job, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: `jobs` must be a mapping", file)
	}

	var jobs []*config.Job
	for i := 0; i < len(node.Content)-1; i += 2 {
		name := node.Content[i].Value

		var entry jobEntry
		if err := node.Content[i+1].Decode(&entry); err != nil {
			return nil, fmt.Errorf("%s: invalid job %q: %w", file, name, err)
		}

		job, err := translateJob(name, &entry, file)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func translateJob(name string, entry *jobEntry, file string) (*config.Job, error) {
	if entry.Uses == "" {
		return nil, fmt.Errorf("%s: job %q has no `uses` reference; only reusable-workflow jobs are supported", file, name)
	}

	job := &config.Job{
		Name:     name,
		Template: templateNameFromUses(entry.Uses),
		Needs:    entry.Needs,
		With:     make(map[string]hcl.Expression, len(entry.With)),
	}

	for key, value := range entry.With {
		expr, err := parseValue(value, file)
		if err != nil {
			return nil, fmt.Errorf("%s: job %q: invalid `with` value for %q: %w", file, name, key, err)
		}
		// GitHub input names use hyphens; manifests use underscores.
		job.With[strings.ReplaceAll(key, "-", "_")] = expr
	}

	if entry.Strategy != nil && entry.Strategy.Matrix != nil {
		for _, include := range entry.Strategy.Matrix.Include {
			job.Matrix = append(job.Matrix, &config.MatrixEntry{
				Config:    include.Config,
				Shard:     include.Shard,
				NumShards: include.NumShards,
				Runner:    include.Runner,
			})
		}
	}

	return job, nil
}

// templateNameFromUses maps a reusable-workflow path onto a template type:
// the base file name with its extension and the leading underscore (the
// convention marking a workflow as callable) removed.
func templateNameFromUses(uses string) string {
	base := filepath.Base(uses)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, "_")
}
