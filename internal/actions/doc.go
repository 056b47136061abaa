// Package actions imports GitHub Actions workflow files into the engine's
// configuration model. It understands the commonly used subset of the format:
// push/schedule/workflow_dispatch triggers, concurrency groups, jobs calling
// reusable workflows with `uses`/`with`/`needs`, and include-style test
// matrices. GitHub expression syntax (`${{ ... }}`) is rewritten to the
// engine's native expression variables, so imported pipelines evaluate
// against the same workflow.*, trigger.*, matrix.* and job.* namespaces as
// native ones.
//
// Template and service type manifests are not part of the GitHub format;
// the loader delegates those to the HCL loader, so a YAML pipeline can bind
// to the same module manifests an HCL pipeline would.
package actions
