package cache

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	testutils "github.com/recallhq/recall/pkg/utils/test"
)

var _ = Describe("Cache", func() {
	var (
		provider *testutils.MockEmbedder
		ctx      context.Context
	)

	BeforeEach(func() {
		provider = testutils.NewMockEmbedder()
		ctx = context.Background()
	})

	Describe("Embed", func() {
		It("calls the provider once for repeated identical text", func() {
			c := New(provider, 10, zap.NewNop())

			first, err := c.Embed(ctx, "hello world")
			Expect(err).NotTo(HaveOccurred())

			second, err := c.Embed(ctx, "hello world")
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(provider.Calls).To(Equal(1))
		})

		It("treats text case-sensitively", func() {
			c := New(provider, 10, zap.NewNop())

			_, err := c.Embed(ctx, "Hello")
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Embed(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())

			Expect(provider.Calls).To(Equal(2))
		})

		It("returns a copy the caller can mutate", func() {
			c := New(provider, 10, zap.NewNop())

			vec, err := c.Embed(ctx, "mutable")
			Expect(err).NotTo(HaveOccurred())
			vec[0] = 42

			again, err := c.Embed(ctx, "mutable")
			Expect(err).NotTo(HaveOccurred())
			Expect(again[0]).NotTo(Equal(float32(42)))
		})

		It("propagates provider errors without caching them", func() {
			provider.FailOn = "bad input"
			c := New(provider, 10, zap.NewNop())

			_, err := c.Embed(ctx, "bad input")
			Expect(err).To(HaveOccurred())

			provider.FailOn = ""
			_, err = c.Embed(ctx, "bad input")
			Expect(err).NotTo(HaveOccurred())

			stats := c.Stats()
			Expect(stats.Hits).To(Equal(uint64(0)))
			Expect(stats.Misses).To(Equal(uint64(2)))
		})
	})

	Describe("eviction", func() {
		It("evicts the oldest insert once capacity is exceeded", func() {
			c := New(provider, 2, zap.NewNop())

			_, err := c.Embed(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Embed(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Embed(ctx, "c")
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Stats().Size).To(Equal(2))

			// "a" was evicted, so this is a fresh provider call.
			_, err = c.Embed(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.Calls).To(Equal(4))
		})

		It("does not refresh an entry's position on hit", func() {
			c := New(provider, 2, zap.NewNop())

			_, err := c.Embed(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Embed(ctx, "b")
			Expect(err).NotTo(HaveOccurred())

			// Read "a" so an LRU would keep it.
			_, err = c.Embed(ctx, "a")
			Expect(err).NotTo(HaveOccurred())

			// Insert "c": FIFO still evicts "a".
			_, err = c.Embed(ctx, "c")
			Expect(err).NotTo(HaveOccurred())

			calls := provider.Calls
			_, err = c.Embed(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.Calls).To(Equal(calls), "b should still be cached")

			_, err = c.Embed(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.Calls).To(Equal(calls+1), "a should have been evicted")
		})
	})

	Describe("Stats", func() {
		It("counts hits and misses", func() {
			c := New(provider, 10, zap.NewNop())

			_, _ = c.Embed(ctx, "x")
			_, _ = c.Embed(ctx, "x")
			_, _ = c.Embed(ctx, "y")

			stats := c.Stats()
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(2)))
			Expect(stats.Size).To(Equal(2))
			Expect(stats.HitRate()).To(BeNumerically("~", 1.0/3.0, 0.001))
		})

		It("reports a zero hit rate for an unused cache", func() {
			c := New(provider, 10, zap.NewNop())
			Expect(c.Stats().HitRate()).To(BeZero())
		})
	})
})
