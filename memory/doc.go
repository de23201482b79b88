// Package memory holds the agent's knowledge base and the transient chat transcript.
//
// Persistence model:
//   - Facts are an ordered, append-only list serialized as JSON under a single key of a
//     pluggable key-value Backend. Only deletion and wipe remove entries.
//   - Reads fail open: a missing, unreadable or corrupted payload loads as an empty list.
//   - Chat messages live in a Conversation and are never persisted.
package memory
