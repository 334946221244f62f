// Package sink persists fragment artifacts into hash-keyed, append-only
// stores.
//
// A Store is one backend table keyed by the artifact's content hash. SQLite
// and PostgreSQL share a single database/sql implementation and differ only in
// their dialect (DDL, placeholders, constraint-violation detection). A Manager
// wraps one Store with the idempotent put contract: content that is already
// present is reported as AlreadyPresent and never rewritten. Store failures
// are classified as ErrSinkUnavailable or ErrSinkWrite and returned as values
// so the orchestrator can degrade gracefully.
//
// Set resolves the primary sink and the domain-selected secondary sink from
// configuration once, before any item is processed.
package sink
