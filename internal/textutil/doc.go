// Package textutil provides filename sanitization shared by the orchestrator,
// the HTTP front-end, and the CLI.
//
// Upload names are reduced to a safe base name before they touch the
// filesystem, and fragment names are derived from input names the same way
// everywhere so listings can pair an input with its fragment.
package textutil
