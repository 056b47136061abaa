package hclconf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes all possible top-level blocks from any file.
type fileRoot struct {
	Workflows    []*schema.Workflow              `hcl:"workflow,block"`
	Jobs         []*schema.Job                   `hcl:"job,block"`
	Services     []*schema.Service               `hcl:"service,block"`
	Templates    []*schema.TemplateDefinition    `hcl:"template,block"`
	ServiceTypes []*schema.ServiceTypeDefinition `hcl:"servicetype,block"`
	Remain       hcl.Body                        `hcl:",remain"`
}

// Load orchestrates the HCL configuration loading process. It is agnostic to
// the origin of the paths and accepts any valid block from any file, merging
// everything into a single model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.NewModel()

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, wf := range root.Workflows {
			translated, err := translateWorkflow(wf)
			if err != nil {
				return nil, nil, err
			}
			if model.Workflow != nil {
				return nil, nil, fmt.Errorf("duplicate workflow block %q in %s: workflow %q is already defined", wf.Name, file, model.Workflow.Name)
			}
			model.Workflow = translated
		}
		for _, job := range root.Jobs {
			model.Jobs = append(model.Jobs, l.translateJob(job))
		}
		for _, svc := range root.Services {
			model.Services = append(model.Services, l.translateService(svc))
		}
		for _, tpl := range root.Templates {
			def, err := l.translateTemplateDefinition(ctx, tpl)
			if err != nil {
				return nil, nil, err
			}
			model.Templates[def.Type] = def
		}
		for _, st := range root.ServiceTypes {
			def, err := l.translateServiceTypeDefinition(ctx, st)
			if err != nil {
				return nil, nil, err
			}
			model.ServiceTypes[def.Type] = def
		}
	}

	logger.Debug("HCL loading complete.",
		"jobs", len(model.Jobs),
		"services", len(model.Services),
		"templates", len(model.Templates),
		"service_types", len(model.ServiceTypes),
	)
	return model, NewConverter(), nil
}

// findAllHCLFiles walks all given paths and returns a flat, de-duplicated
// list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					if _, wasSeen := seen[p]; !wasSeen {
						allFiles = append(allFiles, p)
						seen[p] = struct{}{}
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			if _, wasSeen := seen[path]; !wasSeen {
				allFiles = append(allFiles, path)
				seen[path] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
