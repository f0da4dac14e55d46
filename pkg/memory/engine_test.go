package memory

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/eventstream"
	"github.com/recallhq/recall/pkg/llm"
	testutils "github.com/recallhq/recall/pkg/utils/test"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []*eventstream.MemoryEvent
}

func (p *capturePublisher) PublishMemory(_ context.Context, event *eventstream.MemoryEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error {
	return nil
}

func (p *capturePublisher) byType(eventType string) []*eventstream.MemoryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*eventstream.MemoryEvent
	for _, ev := range p.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

var _ = Describe("Engine", func() {
	var (
		store     *Store
		embedder  *testutils.MockEmbedder
		model     *testutils.MockChatModel
		publisher *capturePublisher
		engine    *Engine
		ctx       context.Context
	)

	BeforeEach(func() {
		store, embedder, _ = newTestStore()
		model = testutils.NewMockChatModel()
		publisher = &capturePublisher{}
		ctx = context.Background()

		var err error
		engine, err = NewEngine(store, model, publisher, Options{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		embedder.Embeddings["My name is Alice"] = []float32{1, 0, 0, 0}
		embedder.Embeddings["My name is Bob"] = []float32{0, 1, 0, 0}
	})

	Describe("NewEngine", func() {
		It("rejects a missing store", func() {
			_, err := NewEngine(nil, model, publisher, Options{}, zap.NewNop())
			Expect(err).To(MatchError(ErrNotInitialized))
		})

		It("rejects a missing chat model", func() {
			_, err := NewEngine(store, nil, publisher, Options{}, zap.NewNop())
			Expect(err).To(MatchError(ErrNotInitialized))
		})
	})

	Describe("uninitialized engine", func() {
		It("returns ErrNotInitialized from every operation", func() {
			var bare Engine

			_, err := bare.Remember(ctx, "u1", ExtractedFact{Content: "x"})
			Expect(err).To(MatchError(ErrNotInitialized))

			_, err = bare.Retrieve(ctx, RetrieveQuery{UserID: "u1", Query: "x"})
			Expect(err).To(MatchError(ErrNotInitialized))

			_, err = bare.Chat(ctx, "u1", "s1", "x")
			Expect(err).To(MatchError(ErrNotInitialized))

			Expect(bare.Forget(ctx, "id")).To(MatchError(ErrNotInitialized))
		})
	})

	Describe("Remember", func() {
		It("stores a fact and emits a persisted event", func() {
			id, err := engine.Remember(ctx, "u1", ExtractedFact{
				Content:    "My name is Alice",
				Importance: 0.9,
				Confidence: 0.95,
				Type:       TypeExtractedFact,
				Category:   CategoryGeneral,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			count, err := engine.Count(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			persisted := publisher.byType(eventstream.EventTypeMemoryPersisted)
			Expect(persisted).To(HaveLen(1))
			Expect(persisted[0].MemoryID).To(Equal(id))
			Expect(persisted[0].UserID).To(Equal("u1"))
		})

		It("skips a near-duplicate and returns the existing ID", func() {
			fact := ExtractedFact{
				Content:    "My name is Alice",
				Importance: 0.9,
				Type:       TypeExtractedFact,
			}

			first, err := engine.Remember(ctx, "u1", fact)
			Expect(err).NotTo(HaveOccurred())

			second, err := engine.Remember(ctx, "u1", fact)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			count, err := engine.Count(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			Expect(publisher.byType(eventstream.EventTypeMemoryDeduplicated)).To(HaveLen(1))
		})

		It("supersedes a conflicting fact and keeps an audit trail", func() {
			oldID, err := engine.Remember(ctx, "u1", ExtractedFact{
				Content: "My name is Alice",
				Type:    TypeExtractedFact,
			})
			Expect(err).NotTo(HaveOccurred())

			newID, err := engine.Remember(ctx, "u1", ExtractedFact{
				Content: "My name is Bob",
				Type:    TypeExtractedFact,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(newID).NotTo(Equal(oldID))

			count, err := engine.Count(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			_, err = store.GetByID(ctx, oldID)
			Expect(err).To(MatchError(ErrNotFound))

			kept, err := store.GetByID(ctx, newID)
			Expect(err).NotTo(HaveOccurred())
			Expect(kept.Metadata[MetaReplacedMemoryID]).To(Equal(oldID))
			Expect(kept.Metadata[MetaReplacedAt]).NotTo(BeEmpty())

			replaced := publisher.byType(eventstream.EventTypeMemoryReplaced)
			Expect(replaced).To(HaveLen(1))
			Expect(replaced[0].MemoryID).To(Equal(newID))
			Expect(replaced[0].ReplacedMemoryID).To(Equal(oldID))
		})

		It("does not treat duplicates as conflicts", func() {
			_, err := engine.Remember(ctx, "u1", ExtractedFact{
				Content: "My name is Alice",
				Type:    TypeExtractedFact,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = engine.Remember(ctx, "u1", ExtractedFact{
				Content: "My name is Alice",
				Type:    TypeExtractedFact,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(publisher.byType(eventstream.EventTypeMemoryReplaced)).To(BeEmpty())
		})
	})

	Describe("RecordInteraction", func() {
		It("persists extracted facts plus the conversation turn", func() {
			model.Responses = []string{`[{"content": "My name is Alice", "importance": 0.9, "confidence": 0.95, "type": "extracted_fact"}]`}

			ids, err := engine.RecordInteraction(ctx, Interaction{
				UserID:           "u1",
				UserMessage:      "Hi, my name is Alice",
				AssistantMessage: "Nice to meet you, Alice!",
				SessionID:        "s1",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(2))

			count, err := engine.Count(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			fact, err := store.GetByID(ctx, ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(fact.Type).To(Equal(TypeExtractedFact))
			Expect(fact.Metadata[MetaExtractedFrom]).To(ContainSubstring("my name is Alice"))
			Expect(fact.SessionID).To(Equal("s1"))

			turn, err := store.GetByID(ctx, ids[1])
			Expect(err).NotTo(HaveOccurred())
			Expect(turn.Type).To(Equal(TypeConversation))
			Expect(turn.Content).To(Equal("User: Hi, my name is Alice\nAssistant: Nice to meet you, Alice!"))
		})

		It("still records the turn when no facts were extracted", func() {
			model.Responses = []string{"[]"}

			ids, err := engine.RecordInteraction(ctx, Interaction{
				UserID:           "u1",
				UserMessage:      "what time is it?",
				AssistantMessage: "Time to write tests.",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(1))
		})
	})

	Describe("Chat", func() {
		It("replies, tracks the session, and records the exchange", func() {
			model.Responses = []string{"Hello there!", "[]"}

			reply, err := engine.Chat(ctx, "u1", "s1", "Hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("Hello there!"))

			session, err := engine.Session("s1", "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.MessageCount).To(Equal(1))

			// The conversation turn was persisted.
			count, err := engine.Count(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("numbers messages within the session in the system prompt", func() {
			model.Responses = []string{"first", "[]", "second", "[]"}

			_, err := engine.Chat(ctx, "u1", "s1", "Hello")
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.Chat(ctx, "u1", "s1", "Hello again")
			Expect(err).NotTo(HaveOccurred())

			// Requests alternate chat / extraction; the chat calls are 0 and 2.
			Expect(model.Requests[0][0].Content).To(ContainSubstring("message #1"))
			Expect(model.Requests[2][0].Content).To(ContainSubstring("message #2"))
		})

		It("folds remembered facts into the system prompt", func() {
			_, err := engine.Remember(ctx, "u1", ExtractedFact{
				Content:    "My name is Alice",
				Importance: 0.9,
				Type:       TypeExtractedFact,
			})
			Expect(err).NotTo(HaveOccurred())

			embedder.Embeddings["who am I?"] = []float32{1, 0, 0, 0}

			model.Responses = []string{"You are Alice.", "[]"}
			_, err = engine.Chat(ctx, "u1", "s1", "who am I?")
			Expect(err).NotTo(HaveOccurred())

			Expect(model.Requests[0][0].Role).To(Equal(llm.RoleSystem))
			Expect(model.Requests[0][0].Content).To(ContainSubstring("My name is Alice"))
		})

		It("surfaces provider failures", func() {
			model.Err = errProviderDown

			_, err := engine.Chat(ctx, "u1", "s1", "Hello")
			Expect(err).To(MatchError(errProviderDown))
		})
	})

	Describe("Forget", func() {
		It("erases a user's memories and reports the count", func() {
			_, err := engine.Remember(ctx, "u1", ExtractedFact{Content: "My name is Alice", Type: TypeExtractedFact})
			Expect(err).NotTo(HaveOccurred())
			_, err = engine.Remember(ctx, "u1", ExtractedFact{Content: "Prefers dark mode", Type: TypePreference})
			Expect(err).NotTo(HaveOccurred())

			n, err := engine.ForgetUser(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			count, err := engine.Count(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})

var errProviderDown = &providerDownError{}

type providerDownError struct{}

func (e *providerDownError) Error() string { return "provider down" }
