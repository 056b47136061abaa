package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the shell template.
type Input struct {
	Command string            `cv:"command"`
	Workdir string            `cv:"workdir"`
	Env     map[string]string `cv:"env"`
}

// Deps is an empty struct because this template does not use any services.
type Deps struct{}

// Output is the result of a shell invocation.
type Output struct {
	ExitCode int    `cty:"exit_code"`
	Stdout   string `cty:"stdout"`
	Stderr   string `cty:"stderr"`
}

// OnRunShell is the handler for the 'shell' template's on_run lifecycle event.
// The command runs under `sh -c`, inheriting the process environment plus any
// overrides from the env input. A non-zero exit status fails the job.
func OnRunShell(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running shell command.", "command", input.Command, "workdir", input.Workdir)

	cmd := exec.CommandContext(ctx, "sh", "-c", input.Command)
	cmd.Dir = input.Workdir
	cmd.Env = os.Environ()
	for k, v := range input.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := &Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			output.ExitCode = exitErr.ExitCode()
			return output, fmt.Errorf("command exited with status %d: %s",
				output.ExitCode, lastLine(output.Stderr))
		}
		return output, fmt.Errorf("command failed to start: %w", err)
	}

	return output, nil
}

// lastLine extracts the final non-empty line of command output for error messages.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTemplate("OnRunShell", &registry.RegisteredTemplate{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunShell,
	})
}
