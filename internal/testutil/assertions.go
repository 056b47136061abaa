package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertJobRan checks the log output within a HarnessResult to confirm that a
// specific job has completed. It abstracts the underlying node ID format,
// making tests more resilient to internal refactoring.
func AssertJobRan(t *testing.T, result *HarnessResult, jobName string) {
	t.Helper()

	expectedLogSubstring := fmt.Sprintf("✅ Finished job instance\" job=job.%s", jobName)

	require.True(t,
		strings.Contains(result.LogOutput, expectedLogSubstring),
		"expected log output for job %q was not found in logs", jobName,
	)
}

// AssertJobInstanceRan confirms that a specific matrix instance of a job has
// completed.
func AssertJobInstanceRan(t *testing.T, result *HarnessResult, jobName string, index int) {
	t.Helper()

	expectedLogSubstring := fmt.Sprintf("✅ Finished job instance\" job=job.%s[%d]", jobName, index)

	require.True(t,
		strings.Contains(result.LogOutput, expectedLogSubstring),
		"expected log output for job instance %q[%d] was not found in logs", jobName, index,
	)
}

// AssertJobSkipped confirms that a job instance was skipped because one of
// its dependencies failed.
func AssertJobSkipped(t *testing.T, result *HarnessResult, jobName string) {
	t.Helper()

	expectedLogSubstring := fmt.Sprintf("Skipping node due to failed dependency.\" nodeID=job.%s", jobName)

	require.True(t,
		strings.Contains(result.LogOutput, expectedLogSubstring),
		"expected job %q to be skipped, but no skip log entry was found", jobName,
	)
}
