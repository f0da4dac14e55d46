// Package eventstream defines transport-neutral memory lifecycle events.
//
// Publishers are pluggable; the engine emits an event after every persist
// decision so downstream systems can audit what was stored, replaced, or
// skipped as a duplicate. Publish failures are advisory and never abort the
// memory operation that triggered them.
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryPersisted is emitted after a new memory is stored.
	EventTypeMemoryPersisted = "recall.memory.persisted"

	// EventTypeMemoryReplaced is emitted when a conflicting memory is
	// superseded by a newer fact.
	EventTypeMemoryReplaced = "recall.memory.replaced"

	// EventTypeMemoryDeduplicated is emitted when an insert is skipped
	// because a near-duplicate already exists.
	EventTypeMemoryDeduplicated = "recall.memory.deduplicated"
)

// MemoryEvent is a transport-neutral event payload for a memory decision.
type MemoryEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// UserID is the owner of the affected memory.
	UserID string `json:"user_id"`

	// MemoryID is the stored (or, for dedup events, the pre-existing) memory.
	MemoryID string `json:"memory_id"`

	// ReplacedMemoryID is set on replaced events only.
	ReplacedMemoryID string `json:"replaced_memory_id,omitempty"`

	// MemoryType is the memory's type tag at decision time.
	MemoryType string `json:"memory_type,omitempty"`
}
