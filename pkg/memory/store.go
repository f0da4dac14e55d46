package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/embeddings"
	"github.com/recallhq/recall/pkg/vector"
)

// defaultImportance is assumed for stored records missing an importance field.
const defaultImportance = 0.5

// SearchFilters restricts a search to matching memories. Equality filters
// (UserID, Type, Category) are pushed down to the vector driver; timestamp
// range filters are applied as a post-filter because the underlying index
// has no native range predicate.
type SearchFilters struct {
	UserID   string
	Type     Type
	Category Category
	Since    time.Time
	Until    time.Time
}

func (f SearchFilters) driverFilter() vector.Filter {
	return vector.Filter{
		UserID:   f.UserID,
		Type:     string(f.Type),
		Category: string(f.Category),
	}
}

func (f SearchFilters) hasTimeRange() bool {
	return !f.Since.IsZero() || !f.Until.IsZero()
}

func (f SearchFilters) inTimeRange(ts time.Time) bool {
	if !f.Since.IsZero() && ts.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ts.After(f.Until) {
		return false
	}
	return true
}

// Store translates memories to and from the vector driver's primitive
// operations. Query embedding always goes through the configured embedder,
// which is expected to be the caching wrapper.
type Store struct {
	driver   vector.Driver
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewStore creates a store adapter over the given driver and embedder.
func NewStore(driver vector.Driver, embedder embeddings.Embedder, logger *zap.Logger) *Store {
	return &Store{
		driver:   driver,
		embedder: embedder,
		logger:   logger,
	}
}

// Embed computes (or recalls from cache) the embedding for text.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

// Add persists a single memory. A missing ID, timestamp, or embedding is
// filled in; a memory without an embedding cannot be searched.
func (s *Store) Add(ctx context.Context, mem *Memory) error {
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	if mem.Timestamp.IsZero() {
		mem.Timestamp = time.Now()
	}
	if len(mem.Embedding) == 0 {
		emb, err := s.embedder.Embed(ctx, mem.Content)
		if err != nil {
			return fmt.Errorf("embedding memory content: %w", err)
		}
		mem.Embedding = emb
	}

	if err := s.driver.Add(ctx, []vector.Document{memoryToDoc(mem)}); err != nil {
		return fmt.Errorf("storing memory %s: %w", mem.ID, err)
	}

	s.logger.Debug("memory stored",
		zap.String("id", mem.ID),
		zap.String("user_id", mem.UserID),
		zap.String("type", string(mem.Type)),
	)
	return nil
}

// AddBatch persists multiple memories, embedding any that need it.
func (s *Store) AddBatch(ctx context.Context, mems []*Memory) error {
	for _, mem := range mems {
		if err := s.Add(ctx, mem); err != nil {
			return err
		}
	}
	return nil
}

// SearchByText embeds the query and performs a nearest-neighbor search
// scoped to userID.
func (s *Store) SearchByText(ctx context.Context, query, userID string, limit int) ([]*Memory, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return s.SearchByEmbedding(ctx, emb, SearchFilters{UserID: userID}, limit)
}

// SearchByEmbedding performs a filtered nearest-neighbor search. Every
// returned memory carries Relevance = 1 - distance. When a time range is
// requested the driver is over-fetched at 2x limit before post-filtering.
func (s *Store) SearchByEmbedding(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 10
	}

	fetch := limit
	if filters.hasTimeRange() {
		fetch = limit * 2
	}

	results, err := s.driver.Query(ctx, embedding, fetch, filters.driverFilter())
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	mems := make([]*Memory, 0, len(results))
	for _, res := range results {
		mem := docToMemory(res.Document)
		mem.Relevance = float64(1 - res.Distance)
		if filters.hasTimeRange() && !filters.inTimeRange(mem.Timestamp) {
			continue
		}
		mems = append(mems, mem)
		if len(mems) == limit {
			break
		}
	}

	return mems, nil
}

// GetByID retrieves a single memory, returning ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Memory, error) {
	docs, err := s.driver.Get(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("getting memory %s: %w", id, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return docToMemory(docs[0]), nil
}

// GetByUser returns all of a user's memories in store order.
func (s *Store) GetByUser(ctx context.Context, userID string) ([]*Memory, error) {
	docs, err := s.driver.List(ctx, vector.Filter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("listing memories for user %s: %w", userID, err)
	}

	mems := make([]*Memory, 0, len(docs))
	for _, doc := range docs {
		mems = append(mems, docToMemory(doc))
	}
	return mems, nil
}

// DeleteByID removes a single memory.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := s.driver.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}
	return nil
}

// DeleteByUser removes all of a user's memories and returns the count.
func (s *Store) DeleteByUser(ctx context.Context, userID string) (int, error) {
	n, err := s.driver.DeleteWhere(ctx, vector.Filter{UserID: userID})
	if err != nil {
		return 0, fmt.Errorf("deleting memories for user %s: %w", userID, err)
	}

	s.logger.Info("user memories erased",
		zap.String("user_id", userID),
		zap.Int("count", n),
	)
	return n, nil
}

// Count returns the number of stored memories, scoped to userID when
// non-empty.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	return s.driver.Count(ctx, vector.Filter{UserID: userID})
}

// memoryToDoc flattens a memory into the driver's document shape. Typed
// fields become well-known metadata keys alongside the memory's own
// metadata entries.
func memoryToDoc(mem *Memory) vector.Document {
	meta := map[string]string{
		"user_id":    mem.UserID,
		"type":       string(mem.Type),
		"category":   string(mem.Category),
		"importance": strconv.FormatFloat(mem.Importance, 'f', -1, 64),
		"timestamp":  mem.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if mem.SessionID != "" {
		meta[MetaSessionID] = mem.SessionID
	}
	for k, v := range mem.Metadata {
		meta[k] = v
	}

	return vector.Document{
		ID:        mem.ID,
		Content:   mem.Content,
		Embedding: mem.Embedding,
		Metadata:  meta,
	}
}

// docToMemory rebuilds a memory from a stored document. Records written by
// older versions may be missing fields; those default deterministically
// (type=conversation, category=general, importance=0.5) rather than failing.
func docToMemory(doc vector.Document) *Memory {
	mem := &Memory{
		ID:         doc.ID,
		Content:    doc.Content,
		Embedding:  doc.Embedding,
		Type:       DefaultType,
		Category:   DefaultCategory,
		Importance: defaultImportance,
		Metadata:   make(map[string]string),
	}

	for k, v := range doc.Metadata {
		switch k {
		case "user_id":
			mem.UserID = v
		case "type":
			mem.Type = ParseType(v, DefaultType)
		case "category":
			mem.Category = ParseCategory(v)
		case "importance":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				mem.Importance = clamp01(f)
			}
		case "timestamp":
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				mem.Timestamp = ts
			}
		case MetaSessionID:
			mem.SessionID = v
		default:
			mem.Metadata[k] = v
		}
	}

	return mem
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
