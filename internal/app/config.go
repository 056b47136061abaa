package app

import (
	"errors"
	"fmt"

	"github.com/conveyorci/conveyor/internal/trigger"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // pipeline files: .hcl or GitHub Actions .yml/.yaml
	ModulesPath  string // template manifests + handlers

	LintOnly bool // check the pipeline and exit without running it

	// The event that starts this run, matched against the workflow's triggers.
	EventKind string
	Ref       string
	RefType   string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.EventKind != "" {
		if _, err := trigger.ParseKind(cfg.EventKind); err != nil {
			return nil, fmt.Errorf("invalid event kind: %w", err)
		}
	}
	if cfg.RefType != "" {
		if _, err := trigger.ParseRefType(cfg.RefType); err != nil {
			return nil, fmt.Errorf("invalid ref type: %w", err)
		}
	}
	if cfg.WorkerCount < 0 {
		return nil, errors.New("WorkerCount cannot be negative")
	}
	return &cfg, nil
}
