// Package worker runs the external IFC-to-fragment converter as an isolated,
// killable child process.
//
// Each attempt selects a resource policy from the input size, launches the
// worker in its own process group with the tier's memory and runtime flags,
// and enforces the tier's wall-clock timeout. The exit status and the
// presence of a non-empty output file are the only success signals; worker
// output is logged at debug level and never inspected for control decisions.
package worker
