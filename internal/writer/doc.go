// Package writer implements the batch writer that archives forwarded
// realtime messages.
//
// The feed writer uses append-only semantics (never update, only insert).
// Payloads are stored verbatim as JSONB so the archive survives upstream
// schema changes.
package writer
