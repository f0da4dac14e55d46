// Package memory implements the semantic memory engine: fact extraction,
// deduplication, conflict resolution, relevance re-ranking, and token-budgeted
// context assembly over a vector store.
//
// The engine consumes three narrow interfaces: an embeddings.Embedder
// (usually wrapped by the embeddings/cache package), a vector.Driver, and a
// llm.ChatModel. Memories are immutable once created; newer facts supersede
// older ones through an append-only replacement trail rather than in-place
// edits.
//
// Per-request flow: the user message is used both as a retrieval query and as
// extraction input; retrieved memories are re-ranked and assembled into a
// context block; the reply and any extracted facts are persisted through
// dedup and conflict resolution.
package memory
