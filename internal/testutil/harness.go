package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyorci/conveyor/internal/actions"
	"github.com/conveyorci/conveyor/internal/app"
	"github.com/conveyorci/conveyor/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// RunIntegrationTest provides a standardized harness for running integration
// tests using a default background context and a dispatch trigger event.
func RunIntegrationTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, modules...)
}

// RunIntegrationTestWithContext provides a standardized harness for running
// integration tests with a specific context provided by the caller.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	// 1. Create a temporary root directory for the test.
	tmpDir := t.TempDir()

	pipelineDir := filepath.Join(tmpDir, "pipeline")
	modulesDir := filepath.Join(tmpDir, "modules")
	require.NoError(t, os.Mkdir(pipelineDir, 0755))
	require.NoError(t, os.Mkdir(modulesDir, 0755))

	// 2. Write all config files to the temporary directory. The test provides
	//    relative paths (e.g. "modules/x/manifest.hcl" or "pipeline/main.hcl"),
	//    which naturally creates the subdirectory structure within tmpDir.
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	// 3. Configure the app to use the dedicated, non-overlapping subdirectories.
	appConfig := &app.Config{
		PipelinePath: pipelineDir,
		ModulesPath:  modulesDir,
		EventKind:    "dispatch",
		Ref:          "main",
		RefType:      "branch",
		LogLevel:     "debug",
		LogFormat:    "text",
		WorkerCount:  4,
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, actions.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			App:       nil,
		}
	}

	runErr := testApp.Run(ctx)

	if os.Getenv("CONVEYOR_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}
