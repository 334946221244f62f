// Package logging assembles structured slog loggers and formatting helpers used
// across fragmenter components.
//
// The console handler prints the component and a short run/item scope ahead
// of each message so lines from one conversion can be picked out of a batch;
// the JSON handler keeps every field as a key for log shippers. Context
// helpers tag lines with run identifiers, work item names, and correlation
// IDs, and Prune applies the retention window to report and log files.
package logging
