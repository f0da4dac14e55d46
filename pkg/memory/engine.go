package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/eventstream"
	"github.com/recallhq/recall/pkg/eventstream/nop"
	"github.com/recallhq/recall/pkg/llm"
	"github.com/recallhq/recall/pkg/utils"
)

// DefaultDedupThreshold is the relevance above which a new memory is treated
// as a near-duplicate and skipped.
const DefaultDedupThreshold = 0.95

// Options tunes engine behavior. Zero values select the documented defaults.
type Options struct {
	RetrievalLimit     int
	RetrievalThreshold float64
	ChatThreshold      float64
	DedupThreshold     float64
	MaxContextTokens   int
	Weights            RankWeights
}

func (o Options) withDefaults() Options {
	if o.RetrievalLimit <= 0 {
		o.RetrievalLimit = 5
	}
	if o.RetrievalThreshold == 0 {
		o.RetrievalThreshold = DefaultThreshold
	}
	if o.ChatThreshold == 0 {
		o.ChatThreshold = ChatThreshold
	}
	if o.DedupThreshold == 0 {
		o.DedupThreshold = DefaultDedupThreshold
	}
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = DefaultMaxContextTokens
	}
	if o.Weights.isZero() {
		o.Weights = DefaultRankWeights
	}
	return o
}

// Engine orchestrates the full memory flow: extraction, deduplication,
// conflict resolution, retrieval, context assembly, and session tracking.
//
// Within one request all provider and store calls are issued sequentially;
// concurrent requests are safe because the session table and the embedding
// cache serialize their own access.
type Engine struct {
	store     *Store
	extractor *Extractor
	resolver  *Resolver
	retriever *Retriever
	builder   *ContextBuilder
	sessions  *SessionTracker
	model     llm.ChatModel
	publisher eventstream.Publisher
	logger    *zap.Logger
	opts      Options
	ready     bool
}

// NewEngine wires an engine from its collaborators. A nil publisher selects
// the no-op event publisher.
func NewEngine(store *Store, model llm.ChatModel, publisher eventstream.Publisher, opts Options, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNotInitialized)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: chat model is required", ErrNotInitialized)
	}
	if publisher == nil {
		publisher = nop.NewPublisher()
	}
	opts = opts.withDefaults()

	return &Engine{
		store:     store,
		extractor: NewExtractor(model, logger),
		resolver:  NewResolver(store, logger),
		retriever: NewRetriever(store, opts.Weights, logger),
		builder:   NewContextBuilder(opts.MaxContextTokens),
		sessions:  NewSessionTracker(),
		model:     model,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		ready:     true,
	}, nil
}

// guard rejects operations on an engine that was never constructed through
// NewEngine.
func (e *Engine) guard() error {
	if e == nil || !e.ready {
		return ErrNotInitialized
	}
	return nil
}

// Remember persists a single fact for a user, applying dedup and conflict
// resolution. It returns the stored memory's ID, or the existing memory's ID
// when the fact was a near-duplicate.
func (e *Engine) Remember(ctx context.Context, userID string, fact ExtractedFact) (string, error) {
	if err := e.guard(); err != nil {
		return "", err
	}
	return e.persistFact(ctx, userID, "", fact, "")
}

// RecordInteraction extracts facts from the interaction, persists each one,
// and logs the conversation turn itself as a memory. It returns the IDs of
// all memories touched (stored or matched by dedup).
func (e *Engine) RecordInteraction(ctx context.Context, interaction Interaction) ([]string, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	facts := e.extractor.Extract(ctx, interaction)

	var ids []string
	for _, fact := range facts {
		id, err := e.persistFact(ctx, interaction.UserID, interaction.SessionID, fact, interaction.UserMessage)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	if interaction.AssistantMessage != "" || interaction.UserMessage != "" {
		turn := ExtractedFact{
			Content:    fmt.Sprintf("User: %s\nAssistant: %s", interaction.UserMessage, interaction.AssistantMessage),
			Importance: defaultImportance,
			Type:       TypeConversation,
			Category:   DefaultCategory,
		}
		id, err := e.persistFact(ctx, interaction.UserID, interaction.SessionID, turn, "")
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// persistFact runs the write path for one candidate fact, strictly in order:
// embed, dedup lookup, conflict lookup, store. A near-duplicate
// short-circuits before the conflict scan, since replacing a memory with
// near-identical content is a no-op by definition.
func (e *Engine) persistFact(ctx context.Context, userID, sessionID string, fact ExtractedFact, extractedFrom string) (string, error) {
	embedding, err := e.store.Embed(ctx, fact.Content)
	if err != nil {
		return "", err
	}

	existing, err := e.store.SearchByEmbedding(ctx, embedding, SearchFilters{
		UserID: userID,
		Type:   fact.Type,
	}, 3)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 && existing[0].Relevance > e.opts.DedupThreshold {
		e.logger.Debug("duplicate memory skipped",
			zap.String("existing_id", existing[0].ID),
			zap.Float64("relevance", existing[0].Relevance),
		)
		e.publish(ctx, eventstream.EventTypeMemoryDeduplicated, userID, existing[0].ID, "", fact.Type)
		return existing[0].ID, nil
	}

	mem := &Memory{
		ID:         uuid.NewString(),
		UserID:     userID,
		Content:    fact.Content,
		Embedding:  embedding,
		Type:       fact.Type,
		Category:   fact.Category,
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Importance: fact.Importance,
		Metadata:   make(map[string]string),
	}
	if fact.Confidence > 0 {
		mem.Metadata[MetaConfidence] = fmt.Sprintf("%.2f", fact.Confidence)
	}
	if extractedFrom != "" {
		mem.Metadata[MetaExtractedFrom] = utils.Truncate(extractedFrom, 200)
	}

	conflict, err := e.resolver.FindConflict(ctx, userID, fact)
	if err != nil {
		return "", err
	}
	if conflict != nil {
		if err := e.store.DeleteByID(ctx, conflict.ID); err != nil {
			return "", err
		}
		mem.Metadata[MetaReplacedMemoryID] = conflict.ID
		mem.Metadata[MetaReplacedAt] = time.Now().UTC().Format(time.RFC3339)

		e.logger.Info("memory superseded",
			zap.String("old_id", conflict.ID),
			zap.String("new_id", mem.ID),
			zap.String("user_id", userID),
		)
	}

	if err := e.store.Add(ctx, mem); err != nil {
		return "", err
	}

	if conflict != nil {
		e.publish(ctx, eventstream.EventTypeMemoryReplaced, userID, mem.ID, conflict.ID, mem.Type)
	} else {
		e.publish(ctx, eventstream.EventTypeMemoryPersisted, userID, mem.ID, "", mem.Type)
	}

	return mem.ID, nil
}

// Retrieve runs semantic search plus composite re-ranking.
func (e *Engine) Retrieve(ctx context.Context, q RetrieveQuery) ([]*Memory, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = e.opts.RetrievalLimit
	}
	if q.Threshold == 0 {
		q.Threshold = e.opts.RetrievalThreshold
	}
	return e.retriever.Retrieve(ctx, q)
}

// BuildContext assembles retrieved memories into a token-budgeted block.
func (e *Engine) BuildContext(memories []*Memory) string {
	if e == nil || !e.ready {
		return ""
	}
	return e.builder.Build(memories, time.Now())
}

// Chat runs the full per-turn flow: retrieve relevant memories, assemble the
// context block, complete through the chat model, then persist the reply and
// any extracted facts. A provider outage surfaces as an error here; there
// is no fallback text generator.
func (e *Engine) Chat(ctx context.Context, userID, sessionID, message string) (string, error) {
	if err := e.guard(); err != nil {
		return "", err
	}

	memories, err := e.retriever.Retrieve(ctx, RetrieveQuery{
		UserID:    userID,
		Query:     message,
		Limit:     e.opts.RetrievalLimit,
		Threshold: e.opts.ChatThreshold,
	})
	if err != nil {
		return "", err
	}

	session := e.sessions.Touch(sessionID, userID, memories)

	system := "You are a helpful assistant with long-term memory of this user."
	if block := e.builder.Build(memories, time.Now()); block != "" {
		system += "\n\nWhat you remember about them:\n\n" + block
	}
	system += fmt.Sprintf("\n(This is message #%d in this session.)", session.MessageCount)

	reply, err := e.model.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: message},
	})
	if err != nil {
		return "", err
	}

	_, err = e.RecordInteraction(ctx, Interaction{
		UserID:           userID,
		UserMessage:      message,
		AssistantMessage: reply,
		SessionID:        sessionID,
		Timestamp:        time.Now(),
	})
	if err != nil {
		return "", err
	}

	return reply, nil
}

// Session returns the current state for a session, creating it if needed.
func (e *Engine) Session(sessionID, userID string) (SessionState, error) {
	if err := e.guard(); err != nil {
		return SessionState{}, err
	}
	return e.sessions.GetOrCreate(sessionID, userID), nil
}

// ClearSession discards a session's ephemeral state.
func (e *Engine) ClearSession(sessionID string) {
	if e == nil || !e.ready {
		return
	}
	e.sessions.Clear(sessionID)
}

// UserMemories returns everything stored for a user, in store order.
func (e *Engine) UserMemories(ctx context.Context, userID string) ([]*Memory, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.store.GetByUser(ctx, userID)
}

// Forget removes a single memory by ID.
func (e *Engine) Forget(ctx context.Context, id string) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.store.DeleteByID(ctx, id)
}

// ForgetUser erases all of a user's memories and returns how many were
// removed.
func (e *Engine) ForgetUser(ctx context.Context, userID string) (int, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	return e.store.DeleteByUser(ctx, userID)
}

// Count returns the number of stored memories, scoped to userID when
// non-empty.
func (e *Engine) Count(ctx context.Context, userID string) (int, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	return e.store.Count(ctx, userID)
}

// publish emits a memory lifecycle event. Publish failures are advisory and
// never abort the operation that triggered them.
func (e *Engine) publish(ctx context.Context, eventType, userID, memoryID, replacedID string, memType Type) {
	err := e.publisher.PublishMemory(ctx, &eventstream.MemoryEvent{
		SchemaVersion:    eventstream.SchemaVersionV1,
		EventType:        eventType,
		EventID:          uuid.NewString(),
		EmittedAt:        time.Now(),
		UserID:           userID,
		MemoryID:         memoryID,
		ReplacedMemoryID: replacedID,
		MemoryType:       string(memType),
	})
	if err != nil {
		e.logger.Warn("memory event publish failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
