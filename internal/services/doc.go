// Package services defines shared utilities consumed by the conversion
// pipeline and its storage integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, work item names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the outcome reasons recorded for every work item.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
