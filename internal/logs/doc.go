// Package logs reads the fragmenter log file for the CLI: the last N lines
// with bounded memory, then optionally follows appended lines until the
// caller's context ends. A log that shrinks (rotation or truncation) is
// re-read from the start.
package logs
