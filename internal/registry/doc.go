// Package registry holds the Go handlers compiled into the engine and the
// template manifests loaded from configuration, and validates that the two
// sides of each contract agree before any run starts.
package registry
