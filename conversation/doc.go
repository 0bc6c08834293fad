// Package conversation holds the durable state of a single dialogue.
//
// A Conversation is an append-only, chronologically ordered sequence of
// Messages plus an unordered collection of Notes distilled from them.
// Every Message carries the embedding computed at creation, which makes
// the conversation itself the retrieval index: Recent serves the
// chronological window and Related serves the semantic one.
//
// Architecture:
//   - Message / Note: immutable entities (vectors computed once, never
//     recomputed; Notes replaced wholesale, never mutated)
//   - Conversation: the aggregate root, single-writer by contract
//   - SnapshotStore: full-snapshot persistence backend (JSON file for
//     local use, bbolt for a crash-safer single file)
//
// The conversation is loaded once at session start and saved in full
// after every turn. Round-trip fidelity of the snapshot document is part
// of the contract and covered by tests.
package conversation
