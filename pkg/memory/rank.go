package memory

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// oneYear is the horizon of the linear recency decay.
const oneYear = 365 * 24 * time.Hour

// DefaultThreshold is the minimum relevance for direct retrieval; the chat
// flow uses the looser ChatThreshold.
const (
	DefaultThreshold = 0.7
	ChatThreshold    = 0.5
)

// RankWeights blends similarity, importance, and recency into the composite
// retrieval score.
type RankWeights struct {
	Similarity float64
	Importance float64
	Recency    float64
}

// DefaultRankWeights are the standard retrieval weights.
var DefaultRankWeights = RankWeights{
	Similarity: 0.5,
	Importance: 0.3,
	Recency:    0.2,
}

func (w RankWeights) isZero() bool {
	return w.Similarity == 0 && w.Importance == 0 && w.Recency == 0
}

// recencyScore decays linearly from 1 (just created) to 0 at one year old,
// never going negative.
func recencyScore(ts, now time.Time) float64 {
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	score := 1 - float64(age)/float64(oneYear)
	if score < 0 {
		return 0
	}
	return score
}

// compositeScore is the retrieval ranking blend.
func compositeScore(mem *Memory, w RankWeights, now time.Time) float64 {
	return mem.Relevance*w.Similarity +
		mem.Importance*w.Importance +
		recencyScore(mem.Timestamp, now)*w.Recency
}

// RetrieveQuery describes one retrieval request.
type RetrieveQuery struct {
	UserID string
	Query  string

	// Limit is the maximum number of memories returned. Defaults to 5.
	Limit int

	// Threshold drops results whose relevance falls below it.
	// Defaults to DefaultThreshold.
	Threshold float64

	// Category optionally restricts results to a single category.
	Category Category
}

// Retriever performs semantic search plus composite re-ranking.
type Retriever struct {
	store   *Store
	weights RankWeights
	logger  *zap.Logger
}

// NewRetriever creates a retriever. Zero weights select DefaultRankWeights.
func NewRetriever(store *Store, weights RankWeights, logger *zap.Logger) *Retriever {
	if weights.isZero() {
		weights = DefaultRankWeights
	}
	return &Retriever{
		store:   store,
		weights: weights,
		logger:  logger,
	}
}

// Retrieve fetches 2x limit nearest neighbors for the query, drops weak and
// off-category results, re-ranks the survivors by composite score, and
// truncates to the limit. The sort is stable so ties keep their original
// scan order.
func (r *Retriever) Retrieve(ctx context.Context, q RetrieveQuery) ([]*Memory, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	threshold := q.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	candidates, err := r.store.SearchByText(ctx, q.Query, q.UserID, limit*2)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	survivors := make([]*Memory, 0, len(candidates))
	for _, mem := range candidates {
		if q.Category != "" && mem.Category != q.Category {
			continue
		}
		if mem.Relevance < threshold {
			continue
		}
		survivors = append(survivors, mem)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return compositeScore(survivors[i], r.weights, now) > compositeScore(survivors[j], r.weights, now)
	})

	if len(survivors) > limit {
		survivors = survivors[:limit]
	}

	r.logger.Debug("memories retrieved",
		zap.String("user_id", q.UserID),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(survivors)),
	)

	return survivors, nil
}
