// Package config defines the format-agnostic model of a pipeline, along with
// the core interfaces (Loader, Converter) for loading and interpreting
// configuration from concrete sources.
//
// The config.Model is the single source of truth for the lint, dag and
// executor packages. Concrete implementations of the interfaces live in
// separate packages: internal/hclconf for native HCL pipelines and
// internal/actions for imported GitHub-Actions-style workflow files.
package config
