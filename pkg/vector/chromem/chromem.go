// Package chromem provides a vector.Driver backed by chromem-go, a pure Go
// embedded vector database with cosine similarity and metadata filtering.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/vector"
)

// DefaultCollectionName is the default collection for storing recall embeddings.
const DefaultCollectionName = "recall"

// Config holds configuration for the chromem driver.
type Config struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string

	// Collection is the collection name. Defaults to DefaultCollectionName.
	Collection string
}

// Driver implements vector.Driver on top of a chromem-go collection.
//
// chromem-go has no scan/list API, so the driver keeps a metadata index of
// stored IDs alongside the collection. The index only mirrors IDs and
// metadata; content and embeddings always come from chromem itself.
type Driver struct {
	db     *chromemgo.DB
	col    *chromemgo.Collection
	logger *zap.Logger

	mu    sync.RWMutex
	meta  map[string]map[string]string
	order []string
}

// NewDriver creates a chromem-backed vector driver.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	var (
		db  *chromemgo.DB
		err error
	)
	if c.Path != "" {
		db, err = chromemgo.NewPersistentDB(c.Path, false)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem db: %v", vector.ErrConnection, err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	name := c.Collection
	if name == "" {
		name = DefaultCollectionName
	}

	// Embeddings are always provided by the caller, so no embedding func.
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating collection %q: %v", vector.ErrConnection, name, err)
	}

	d := &Driver{
		db:     db,
		col:    col,
		logger: logger,
		meta:   make(map[string]map[string]string),
	}

	logger.Info("chromem vector driver initialized",
		zap.String("collection", name),
		zap.Bool("persistent", c.Path != ""),
	)

	return d, nil
}

// Add stores documents, replacing any existing document with the same ID.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		err := d.col.AddDocument(ctx, chromemgo.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		})
		if err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}

		d.mu.Lock()
		if _, exists := d.meta[doc.ID]; !exists {
			d.order = append(d.order, doc.ID)
		}
		d.meta[doc.ID] = copyMeta(doc.Metadata)
		d.mu.Unlock()
	}

	d.logger.Debug("added documents to chromem", zap.Int("count", len(docs)))
	return nil
}

// Query finds the topK most similar documents matching the filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	// chromem rejects nResults larger than the number of stored documents,
	// so clamp before querying and back off if it still complains.
	if count := d.col.Count(); topK > count {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	var (
		results []chromemgo.Result
		err     error
	)
	for n := topK; n >= 1; n-- {
		results, err = d.col.QueryEmbedding(ctx, embedding, n, filter.Where(), nil)
		if err == nil {
			break
		}
		if !isInsufficientDocsError(err) {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
	}
	if err != nil && isInsufficientDocsError(err) {
		return nil, nil
	}

	out := make([]vector.QueryResult, 0, len(results))
	for _, res := range results {
		out = append(out, vector.QueryResult{
			Document: vector.Document{
				ID:        res.ID,
				Content:   res.Content,
				Embedding: res.Embedding,
				Metadata:  res.Metadata,
			},
			Distance: 1 - res.Similarity,
		})
	}

	// chromem returns results ordered by similarity already; keep the sort
	// as a guarantee for the Driver contract.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})

	return out, nil
}

// Get retrieves documents by ID, skipping IDs that are not present.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := d.col.GetByID(ctx, id)
		if err != nil {
			continue
		}
		docs = append(docs, vector.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		})
	}
	return docs, nil
}

// List returns all documents matching the filter in insertion order.
func (d *Driver) List(ctx context.Context, filter vector.Filter) ([]vector.Document, error) {
	ids := d.matchingIDs(filter)
	return d.Get(ctx, ids)
}

// Delete removes documents by ID.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.mu.Lock()
	for _, id := range ids {
		d.removeIndexed(id)
	}
	d.mu.Unlock()

	return nil
}

// DeleteWhere removes all documents matching the filter.
func (d *Driver) DeleteWhere(ctx context.Context, filter vector.Filter) (int, error) {
	ids := d.matchingIDs(filter)
	if len(ids) == 0 {
		return 0, nil
	}
	if err := d.Delete(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Count returns the number of documents matching the filter.
func (d *Driver) Count(_ context.Context, filter vector.Filter) (int, error) {
	if filter.Where() == nil {
		return d.col.Count(), nil
	}
	return len(d.matchingIDs(filter)), nil
}

// Close is a no-op; chromem persists on write.
func (d *Driver) Close() error {
	return nil
}

// matchingIDs returns IDs whose indexed metadata satisfies the filter,
// in insertion order.
func (d *Driver) matchingIDs(filter vector.Filter) []string {
	where := filter.Where()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.order))
	for _, id := range d.order {
		meta, ok := d.meta[id]
		if !ok {
			continue
		}
		match := true
		for k, v := range where {
			if meta[k] != v {
				match = false
				break
			}
		}
		if match {
			ids = append(ids, id)
		}
	}
	return ids
}

// removeIndexed drops id from the metadata index. Caller holds the write lock.
func (d *Driver) removeIndexed(id string) {
	if _, ok := d.meta[id]; !ok {
		return
	}
	delete(d.meta, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// isInsufficientDocsError checks if the error is chromem complaining that
// nResults exceeds the number of (filtered) documents.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

var _ vector.Driver = (*Driver)(nil)
