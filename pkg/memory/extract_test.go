package memory

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	testutils "github.com/recallhq/recall/pkg/utils/test"
)

var _ = Describe("Extractor", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newExtractor := func(model *testutils.MockChatModel) *Extractor {
		return NewExtractor(model, zap.NewNop())
	}

	Describe("Extract", func() {
		It("parses a structured JSON reply", func() {
			model := testutils.NewMockChatModel(`[
				{"content": "User's name is Alice", "importance": 0.9, "confidence": 0.95, "type": "extracted_fact", "category": "general"},
				{"content": "Prefers dark mode", "importance": 0.6, "confidence": 0.8, "type": "preference", "category": "technical"}
			]`)

			facts := newExtractor(model).Extract(ctx, Interaction{
				UserID:      "u1",
				UserMessage: "Hi, I'm Alice and I prefer dark mode",
			})

			Expect(facts).To(HaveLen(2))
			Expect(facts[0].Content).To(Equal("User's name is Alice"))
			Expect(facts[0].Type).To(Equal(TypeExtractedFact))
			Expect(facts[1].Type).To(Equal(TypePreference))
			Expect(facts[1].Category).To(Equal(CategoryTechnical))
		})

		It("unwraps a fenced reply", func() {
			model := testutils.NewMockChatModel("```json\n[{\"content\": \"User works at Initech\", \"confidence\": 0.9}]\n```")

			facts := newExtractor(model).Extract(ctx, Interaction{UserMessage: "I work at Initech"})

			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Content).To(Equal("User works at Initech"))
		})

		It("returns an empty slice for an empty array reply", func() {
			model := testutils.NewMockChatModel("[]")

			facts := newExtractor(model).Extract(ctx, Interaction{UserMessage: "hmm"})
			Expect(facts).To(BeEmpty())
		})

		It("falls back to keyword extraction when the model errors", func() {
			model := testutils.NewMockChatModel()
			model.Err = errors.New("provider down")

			facts := newExtractor(model).Extract(ctx, Interaction{
				UserMessage: "My name is Alice",
			})

			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Content).To(Equal("User's name is Alice"))
		})

		It("falls back to keyword extraction when the reply is not JSON", func() {
			model := testutils.NewMockChatModel("I could not extract anything, sorry!")

			facts := newExtractor(model).Extract(ctx, Interaction{
				UserMessage: "Please remember I ship on Fridays",
			})

			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Content).To(HavePrefix("User asked to remember:"))
			Expect(facts[0].Importance).To(Equal(0.95))
		})
	})

	Describe("parseFacts", func() {
		It("drops facts with low confidence", func() {
			facts, err := parseFacts(`[
				{"content": "probably wrong", "confidence": 0.2},
				{"content": "solid", "confidence": 0.9}
			]`)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Content).To(Equal("solid"))
		})

		It("drops facts with empty or oversized content", func() {
			long := strings.Repeat("x", maxFactContentLen+1)
			facts, err := parseFacts(`[
				{"content": "", "confidence": 0.9},
				{"content": "` + long + `", "confidence": 0.9},
				{"content": "kept", "confidence": 0.9}
			]`)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Content).To(Equal("kept"))
		})

		It("defaults missing scores and unknown enums", func() {
			facts, err := parseFacts(`[{"content": "bare fact", "type": "hallucinated", "category": "nope"}]`)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Importance).To(Equal(defaultFactImportance))
			Expect(facts[0].Confidence).To(Equal(defaultFactConfidence))
			Expect(facts[0].Type).To(Equal(TypeExtractedFact))
			Expect(facts[0].Category).To(Equal(CategoryGeneral))
		})

		It("clamps out-of-range scores", func() {
			facts, err := parseFacts(`[{"content": "excited fact", "importance": 7, "confidence": 1.5}]`)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Importance).To(Equal(1.0))
			Expect(facts[0].Confidence).To(Equal(1.0))
		})

		It("errors on a non-array payload", func() {
			_, err := parseFacts(`{"content": "not an array"}`)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("keywordFacts", func() {
		It("extracts a name", func() {
			facts := keywordFacts("my name is Bob, nice to meet you")
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Content).To(Equal("User's name is Bob"))
			Expect(facts[0].Type).To(Equal(TypeExtractedFact))
		})

		It("extracts an email address", func() {
			facts := keywordFacts("reach me at bob@example.com thanks")
			Expect(facts).To(ContainElement(HaveField("Content", "User's email is bob@example.com")))
		})

		It("extracts an employer", func() {
			facts := keywordFacts("I work at Initech.")
			Expect(facts).To(ContainElement(HaveField("Content", "User works at Initech")))
		})

		It("classifies issue reports as bug events", func() {
			facts := keywordFacts("the export button is broken")
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Type).To(Equal(TypeEvent))
			Expect(facts[0].Category).To(Equal(CategoryBugReport))
		})

		It("suppresses the feature rule when the bug rule matched", func() {
			facts := keywordFacts("I need this fixed, it crashes every time")
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Category).To(Equal(CategoryBugReport))
		})

		It("classifies wants as feature requests", func() {
			facts := keywordFacts("would be great to have CSV export")
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Category).To(Equal(CategoryFeatureRequest))
		})

		It("classifies preferences", func() {
			facts := keywordFacts("I prefer tabs over spaces")
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Type).To(Equal(TypePreference))
		})

		It("returns nothing for an unremarkable message", func() {
			Expect(keywordFacts("what time is it?")).To(BeEmpty())
		})
	})

	Describe("stripCodeFences", func() {
		It("leaves unfenced text alone", func() {
			Expect(stripCodeFences("  [1,2]  ")).To(Equal("[1,2]"))
		})

		It("removes a fence with a language tag", func() {
			Expect(stripCodeFences("```json\n[]\n```")).To(Equal("[]"))
		})
	})
})
