// Package inmemory provides an in-process implementation of vector.Driver.
//
// Documents live in a mutex-guarded map and similarity is brute-force cosine
// distance. This is the local-dev and test story; persistent backends live in
// the chromem and sqlitevec packages.
package inmemory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/recallhq/recall/pkg/vector"
)

// Driver implements vector.Driver using in-process data structures.
type Driver struct {
	mu    sync.RWMutex
	docs  map[string]vector.Document
	order []string // insertion order, for deterministic List/Query ties
}

// NewDriver creates an empty in-memory vector driver.
func NewDriver() *Driver {
	return &Driver{
		docs: make(map[string]vector.Document),
	}
}

// Add stores documents, replacing any existing document with the same ID.
func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		if _, exists := d.docs[doc.ID]; !exists {
			d.order = append(d.order, doc.ID)
		}
		d.docs[doc.ID] = cloneDoc(doc)
	}
	return nil
}

// Query returns the topK documents closest to embedding by cosine distance.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]vector.QueryResult, 0, len(d.docs))
	for _, id := range d.order {
		doc, ok := d.docs[id]
		if !ok || !filter.Matches(doc) {
			continue
		}
		results = append(results, vector.QueryResult{
			Document: cloneDoc(doc),
			Distance: cosineDistance(embedding, doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get retrieves documents by ID, skipping IDs that are not present.
func (d *Driver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := d.docs[id]; ok {
			docs = append(docs, cloneDoc(doc))
		}
	}
	return docs, nil
}

// List returns all documents matching the filter in insertion order.
func (d *Driver) List(_ context.Context, filter vector.Filter) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var docs []vector.Document
	for _, id := range d.order {
		doc, ok := d.docs[id]
		if !ok || !filter.Matches(doc) {
			continue
		}
		docs = append(docs, cloneDoc(doc))
	}
	return docs, nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (d *Driver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		d.remove(id)
	}
	return nil
}

// DeleteWhere removes all documents matching the filter.
func (d *Driver) DeleteWhere(_ context.Context, filter vector.Filter) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var doomed []string
	for id, doc := range d.docs {
		if filter.Matches(doc) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		d.remove(id)
	}
	return len(doomed), nil
}

// Count returns the number of documents matching the filter.
func (d *Driver) Count(_ context.Context, filter vector.Filter) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, doc := range d.docs {
		if filter.Matches(doc) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// remove deletes id from both the map and the order slice.
// Caller must hold the write lock.
func (d *Driver) remove(id string) {
	if _, ok := d.docs[id]; !ok {
		return
	}
	delete(d.docs, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func cloneDoc(doc vector.Document) vector.Document {
	out := doc
	out.Embedding = make([]float32, len(doc.Embedding))
	copy(out.Embedding, doc.Embedding)
	out.Metadata = make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// cosineDistance returns 1 - cosine similarity. Zero-magnitude vectors are
// treated as maximally distant.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return float32(1 - sim)
}

var _ vector.Driver = (*Driver)(nil)
