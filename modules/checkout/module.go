package checkout

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"reflect"
	"strings"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the checkout template.
type Input struct {
	Repository string `cv:"repository"`
	Ref        string `cv:"ref"`
	Path       string `cv:"path"`
	Depth      int    `cv:"depth"`
}

// Deps is an empty struct because this template does not use any services.
type Deps struct{}

// Output reports where the repository was checked out and at which commit.
type Output struct {
	Commit string `cty:"commit"`
	Path   string `cty:"path"`
}

// OnRunCheckout is the handler for the 'checkout' template's on_run lifecycle
// event. It shallow-clones the repository at the requested ref using the git
// CLI and reports the resolved commit hash.
func OnRunCheckout(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	dest := input.Path
	if dest == "" {
		dest = path.Base(strings.TrimSuffix(input.Repository, ".git"))
	}
	logger.Debug("Checking out repository.", "repository", input.Repository, "ref", input.Ref, "path", dest)

	args := []string{"clone", "--depth", fmt.Sprint(input.Depth), "--branch", input.Ref, input.Repository, dest}
	if out, err := runGit(ctx, "", args...); err != nil {
		// A bare commit hash is not a named ref, so clone rejects it as
		// --branch. Fetch the ref directly instead.
		logger.Debug("Branch clone failed, fetching the ref directly.", "output", strings.TrimSpace(out))
		if err := fetchRef(ctx, input.Repository, input.Ref, input.Depth, dest); err != nil {
			return nil, err
		}
	}

	commit, err := runGit(ctx, dest, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checked-out commit: %w", err)
	}

	return &Output{Commit: strings.TrimSpace(commit), Path: dest}, nil
}

// fetchRef checks out a ref that clone cannot resolve by name, such as a
// commit hash: an empty repository fetches exactly that ref and detaches
// onto the fetched head.
func fetchRef(ctx context.Context, repository, ref string, depth int, dest string) error {
	if out, err := runGit(ctx, "", "init", "--quiet", dest); err != nil {
		return fmt.Errorf("git init failed: %s: %w", strings.TrimSpace(out), err)
	}
	if out, err := runGit(ctx, dest, "remote", "add", "origin", repository); err != nil {
		return fmt.Errorf("git remote add failed: %s: %w", strings.TrimSpace(out), err)
	}
	if out, err := runGit(ctx, dest, "fetch", "--depth", fmt.Sprint(depth), "origin", ref); err != nil {
		return fmt.Errorf("git fetch failed for ref %q: %s: %w", ref, strings.TrimSpace(out), err)
	}
	if out, err := runGit(ctx, dest, "checkout", "--detach", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("git checkout failed: %s: %w", strings.TrimSpace(out), err)
	}
	return nil
}

// runGit runs a git subcommand and returns its combined output.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTemplate("OnRunCheckout", &registry.RegisteredTemplate{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunCheckout,
	})
}
