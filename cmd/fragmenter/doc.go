// Package main hosts the fragmenter CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, wires the conversion
// orchestrator to its worker, fallback producer, sinks, and report emitter,
// and exposes batch conversion, single-file conversion, the HTTP front-end,
// and read-only views over tiers, sinks, and saved reports.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// surfaced here through commands and flags.
package main
