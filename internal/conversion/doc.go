// Package conversion drives IFC inputs through the worker, the fallback
// producer, and the sinks, and accounts for every item in a Statistics value.
//
// Items are processed strictly one at a time in lexicographic order. Each
// item runs a two-stage attempt pipeline (worker, then fallback on failure)
// and, when an artifact exists, is stored in the primary sink and then in the
// secondary sink. The secondary sink is only attempted when the primary sink
// is not configured or has confirmed the artifact; otherwise it is recorded as
// not attempted. Statistics are owned by one run and handed to the Reporter
// when the run ends, including runs cut short by cancellation.
package conversion
