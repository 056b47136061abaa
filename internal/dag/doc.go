// Package dag builds the execution graph of a pipeline run: one node per job
// instance (matrix entries become separate instances) and per service, with
// edges from explicit `needs` declarations and from implicit references in
// argument expressions. The build validates output references against
// template manifests and rejects cyclic graphs.
package dag
