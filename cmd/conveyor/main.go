package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/conveyorci/conveyor/internal/actions"
	"github.com/conveyorci/conveyor/internal/app"
	"github.com/conveyorci/conveyor/internal/cli"
	"github.com/conveyorci/conveyor/internal/config"
	"github.com/conveyorci/conveyor/internal/hclconf"
)

// main is the entrypoint for the conveyor application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, parseErr := cli.Parse(args, outW)
	if parseErr != nil {
		return parseErr
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors, so we recover here to provide
	// a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("a critical startup error occurred: %v", r)
		}
	}()

	conveyorApp := app.NewApp(outW, appConfig, newLoader(appConfig.PipelinePath))

	return conveyorApp.Run(context.Background())
}

// newLoader picks the configuration loader for the given pipeline path. A
// bare .hcl file gets the native loader; anything else (YAML files,
// directories that may mix formats) gets the GitHub Actions importer, which
// delegates HCL content to the native loader anyway.
func newLoader(path string) config.Loader {
	if filepath.Ext(path) == ".hcl" {
		return hclconf.NewLoader()
	}
	return actions.NewLoader()
}
