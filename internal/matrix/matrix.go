// Package matrix normalizes and validates the test-matrix blocks of a job.
// A matrix entry is one parallel execution: a configuration label plus a
// 1-based shard out of num_shards, optionally pinned to a runner label.
package matrix

import (
	"fmt"
	"sort"

	"github.com/conveyorci/conveyor/internal/config"
)

// Expand returns the effective matrix entries for a job. A job without a
// matrix runs as a single unsharded instance, represented by one default
// entry so callers never special-case the empty matrix.
func Expand(job *config.Job) []*config.MatrixEntry {
	if len(job.Matrix) == 0 {
		return []*config.MatrixEntry{{Config: "default", Shard: 1, NumShards: 1}}
	}

	entries := make([]*config.MatrixEntry, len(job.Matrix))
	for i, e := range job.Matrix {
		entry := *e
		if entry.Config == "" {
			entry.Config = "default"
		}
		if entry.NumShards == 0 {
			entry.NumShards = 1
		}
		if entry.Shard == 0 {
			entry.Shard = 1
		}
		entries[i] = &entry
	}
	return entries
}

// Validate checks the shard invariants of a job's matrix: within each
// configuration label, all entries agree on num_shards and the shard indices
// are unique and cover 1..num_shards exactly.
func Validate(jobName string, entries []*config.MatrixEntry) []error {
	var errs []error

	byConfig := make(map[string][]*config.MatrixEntry)
	for _, e := range entries {
		if e.Shard < 1 {
			errs = append(errs, fmt.Errorf("job %q, config %q: shard indices are 1-based, got %d", jobName, e.Config, e.Shard))
			continue
		}
		byConfig[e.Config] = append(byConfig[e.Config], e)
	}

	configs := make([]string, 0, len(byConfig))
	for name := range byConfig {
		configs = append(configs, name)
	}
	sort.Strings(configs)

	for _, name := range configs {
		group := byConfig[name]
		numShards := group[0].NumShards

		seen := make(map[int]bool)
		for _, e := range group {
			if e.NumShards != numShards {
				errs = append(errs, fmt.Errorf("job %q, config %q: inconsistent num_shards (%d vs %d)", jobName, name, e.NumShards, numShards))
				continue
			}
			if e.Shard > numShards {
				errs = append(errs, fmt.Errorf("job %q, config %q: shard %d exceeds num_shards %d", jobName, name, e.Shard, numShards))
				continue
			}
			if seen[e.Shard] {
				errs = append(errs, fmt.Errorf("job %q, config %q: duplicate shard index %d", jobName, name, e.Shard))
				continue
			}
			seen[e.Shard] = true
		}

		for shard := 1; shard <= numShards; shard++ {
			if !seen[shard] {
				errs = append(errs, fmt.Errorf("job %q, config %q: shard %d of %d is not declared", jobName, name, shard, numShards))
			}
		}
	}

	return errs
}
