// Package vector provides interfaces and implementations for vector storage.
package vector

import "context"

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is a unique identifier for the document.
	ID string

	// Content is the raw text the embedding was computed from.
	Content string

	// Embedding is the vector representation of the document content.
	Embedding []float32

	// Metadata holds string key/value pairs attached to the document.
	// Drivers support equality filtering on these values.
	Metadata map[string]string
}

// QueryResult represents a search result with its distance from the query.
type QueryResult struct {
	Document

	// Distance is the cosine distance to the query embedding
	// (0 = identical direction, 2 = opposite). Lower is more similar.
	Distance float32
}

// Filter restricts driver operations to documents whose metadata matches
// every non-empty field. Zero-value fields are ignored.
type Filter struct {
	UserID   string
	Type     string
	Category string
}

// Where renders the filter as a metadata equality map. Returns nil when the
// filter is empty.
func (f Filter) Where() map[string]string {
	where := make(map[string]string)
	if f.UserID != "" {
		where["user_id"] = f.UserID
	}
	if f.Type != "" {
		where["type"] = f.Type
	}
	if f.Category != "" {
		where["category"] = f.Category
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

// Matches reports whether doc satisfies the filter.
func (f Filter) Matches(doc Document) bool {
	for k, v := range f.Where() {
		if doc.Metadata[k] != v {
			return false
		}
	}
	return true
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings. If a document with the
	// same ID already exists, implementers should update the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding,
	// restricted to documents matching the filter.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Missing IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// List returns all documents matching the filter.
	List(ctx context.Context, filter Filter) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// DeleteWhere removes all documents matching the filter and returns
	// how many were removed.
	DeleteWhere(ctx context.Context, filter Filter) (int, error)

	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
