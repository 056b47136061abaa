// Package hclconf implements the config.Loader and config.Converter
// interfaces for native HCL pipeline files and template manifests. It parses
// any top-level block from any discovered file, so pipelines and manifests
// can be split across files and directories freely.
package hclconf
