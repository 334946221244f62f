// Package server exposes the HTTP front-end: health and status probes,
// listings of inputs and fragments, direct fragment downloads, the primary
// sink's stored records, single-file conversion uploads, and Prometheus
// metrics.
//
// Uploads are funneled through the conversion orchestrator, which serializes
// them with batch runs; the server itself holds no conversion state.
package server
