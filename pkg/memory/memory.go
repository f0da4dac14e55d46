package memory

import (
	"time"
)

// Type classifies what a memory represents.
type Type string

const (
	TypeConversation  Type = "conversation"
	TypeExtractedFact Type = "extracted_fact"
	TypePreference    Type = "preference"
	TypeSentiment     Type = "sentiment"
	TypeEvent         Type = "event"
)

// DefaultType is applied when a stored record or extracted fact carries an
// unknown type.
const DefaultType = TypeConversation

// validTypes is the closed set of accepted memory types.
var validTypes = map[Type]bool{
	TypeConversation:  true,
	TypeExtractedFact: true,
	TypePreference:    true,
	TypeSentiment:     true,
	TypeEvent:         true,
}

// ParseType validates raw against the closed type set, falling back to def.
func ParseType(raw string, def Type) Type {
	t := Type(raw)
	if validTypes[t] {
		return t
	}
	return def
}

// Valid reports whether t is a member of the closed type set.
func (t Type) Valid() bool {
	return validTypes[t]
}

// Category classifies the topic of a memory.
type Category string

const (
	CategoryBugReport      Category = "bug_report"
	CategoryFeatureRequest Category = "feature_request"
	CategoryQuestion       Category = "question"
	CategoryFeedback       Category = "feedback"
	CategoryTechnical      Category = "technical"
	CategoryGeneral        Category = "general"
)

// DefaultCategory is applied when a stored record or extracted fact carries
// an unknown category.
const DefaultCategory = CategoryGeneral

var validCategories = map[Category]bool{
	CategoryBugReport:      true,
	CategoryFeatureRequest: true,
	CategoryQuestion:       true,
	CategoryFeedback:       true,
	CategoryTechnical:      true,
	CategoryGeneral:        true,
}

// ParseCategory validates raw against the closed category set, falling back
// to DefaultCategory.
func ParseCategory(raw string) Category {
	c := Category(raw)
	if validCategories[c] {
		return c
	}
	return DefaultCategory
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	return validCategories[c]
}

// Well-known metadata keys carried on stored memories.
const (
	MetaReplacedMemoryID = "replaced_memory_id"
	MetaReplacedAt       = "replaced_at"
	MetaConfidence       = "confidence"
	MetaExtractedFrom    = "extracted_from"
	MetaSessionID        = "session_id"
)

// Memory is a stored, embedded record representing a fact, preference,
// sentiment, event, or conversation turn. Memories are immutable once
// created: conflicts are resolved by deleting the superseded record and
// inserting a replacement that points back at it.
type Memory struct {
	ID        string
	UserID    string
	Content   string
	Embedding []float32
	Type      Type
	Category  Category
	Timestamp time.Time
	SessionID string

	// Importance is the memory's intrinsic weight in [0, 1].
	Importance float64

	// Relevance is 1 - cosine distance to the query. Only set transiently
	// on retrieval; never persisted.
	Relevance float64

	// Metadata is an open key/value map (replacement audit trail,
	// extraction confidence, provenance).
	Metadata map[string]string
}

// Interaction is one user/assistant exchange. It is input to memory
// creation, not persisted itself.
type Interaction struct {
	UserID           string
	UserMessage      string
	AssistantMessage string
	SessionID        string
	Timestamp        time.Time
	Metadata         map[string]string
}

// ExtractedFact is a transient candidate fact produced by the Extractor and
// consumed by conflict resolution before becoming a Memory.
type ExtractedFact struct {
	Content    string
	Importance float64
	Confidence float64
	Type       Type
	Category   Category
}
