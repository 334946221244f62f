// Package preflight provides readiness checks for the directories, worker
// command, and sinks that fragmenter depends on.
//
// The CLI "fragmenter preflight" command prints every result, and the batch
// convert command runs the same checks before discovery so that a missing
// worker or unreachable sink is reported up front instead of once per item.
//
// Sink checks open a real connection; disabled sinks are skipped.
package preflight
