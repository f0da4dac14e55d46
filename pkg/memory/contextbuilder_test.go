package memory

import (
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ContextBuilder", func() {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	mem := func(content string, memType Type, category Category, importance float64, age time.Duration) *Memory {
		return &Memory{
			ID:         content,
			UserID:     "u1",
			Content:    content,
			Type:       memType,
			Category:   category,
			Importance: importance,
			Timestamp:  now.Add(-age),
		}
	}

	Describe("Build", func() {
		It("returns an empty string for no memories", func() {
			b := NewContextBuilder(0)
			Expect(b.Build(nil, now)).To(BeEmpty())
		})

		It("groups memories into sections in priority order", func() {
			b := NewContextBuilder(0)
			out := b.Build([]*Memory{
				mem("User: hello\nAssistant: hi", TypeConversation, CategoryGeneral, 0.3, time.Hour),
				mem("Export crashes on big files", TypeEvent, CategoryBugReport, 0.8, time.Hour),
				mem("Prefers dark mode", TypePreference, CategoryGeneral, 0.6, time.Hour),
			}, now)

			profileIdx := strings.Index(out, "=== CUSTOMER PROFILE ===")
			issuesIdx := strings.Index(out, "=== KNOWN ISSUES ===")
			recentIdx := strings.Index(out, "=== RECENT INTERACTIONS ===")

			Expect(profileIdx).To(BeNumerically(">=", 0))
			Expect(issuesIdx).To(BeNumerically(">", profileIdx))
			Expect(recentIdx).To(BeNumerically(">", issuesIdx))
		})

		It("omits empty sections", func() {
			b := NewContextBuilder(0)
			out := b.Build([]*Memory{
				mem("Prefers dark mode", TypePreference, CategoryGeneral, 0.6, time.Hour),
			}, now)

			Expect(out).To(ContainSubstring("=== CUSTOMER PROFILE ==="))
			Expect(out).NotTo(ContainSubstring("=== KNOWN ISSUES ==="))
			Expect(out).NotTo(ContainSubstring("=== SENTIMENT HISTORY ==="))
		})

		It("prefixes each line with a coarse age", func() {
			b := NewContextBuilder(0)
			out := b.Build([]*Memory{
				mem("Said hi today", TypePreference, CategoryGeneral, 0.9, time.Hour),
				mem("Asked about exports", TypePreference, CategoryGeneral, 0.5, 26*time.Hour),
				mem("Reported signup issue", TypePreference, CategoryGeneral, 0.3, 5*24*time.Hour),
			}, now)

			Expect(out).To(ContainSubstring("[today] Said hi today"))
			Expect(out).To(ContainSubstring("[yesterday] Asked about exports"))
			Expect(out).To(ContainSubstring("[5 days ago] Reported signup issue"))
		})

		It("orders items within a section by importance and recency", func() {
			b := NewContextBuilder(0)
			out := b.Build([]*Memory{
				mem("minor detail", TypePreference, CategoryGeneral, 0.1, time.Hour),
				mem("key preference", TypePreference, CategoryGeneral, 0.9, time.Hour),
			}, now)

			Expect(strings.Index(out, "key preference")).To(BeNumerically("<", strings.Index(out, "minor detail")))
			Expect(out).To(ContainSubstring("1. [today] key preference"))
			Expect(out).To(ContainSubstring("2. [today] minor detail"))
		})

		It("truncates item content to the section's character limit", func() {
			long := strings.Repeat("a", 300)
			b := NewContextBuilder(0)
			out := b.Build([]*Memory{
				mem(long, TypePreference, CategoryGeneral, 0.9, time.Hour),
			}, now)

			Expect(out).To(ContainSubstring("..."))
			Expect(out).NotTo(ContainSubstring(long))
		})

		It("caps items per section", func() {
			memories := make([]*Memory, 0, 6)
			for i := 0; i < 6; i++ {
				memories = append(memories, mem(
					fmt.Sprintf("sentiment %d", i), TypeSentiment, CategoryFeedback, 0.5, time.Hour,
				))
			}

			b := NewContextBuilder(0)
			out := b.Build(memories, now)

			// The sentiment section admits at most 3 items.
			Expect(strings.Count(out, "sentiment ")).To(Equal(3))
		})

		It("stays within the token budget and emits a truncation marker", func() {
			memories := make([]*Memory, 0, 40)
			for i := 0; i < 40; i++ {
				memories = append(memories, mem(
					fmt.Sprintf("preference number %d with some padding text to spend budget", i),
					TypePreference, CategoryGeneral, 0.5, time.Hour,
				))
			}

			b := NewContextBuilder(30)
			out := b.Build(memories, now)

			Expect(estimateTokens(out)).To(BeNumerically("<=", 30))
			Expect(out).To(MatchRegexp(`\.\.\. \[\d+ more memories truncated\]`))
		})

		It("produces no marker when everything fits", func() {
			b := NewContextBuilder(0)
			out := b.Build([]*Memory{
				mem("Prefers dark mode", TypePreference, CategoryGeneral, 0.6, time.Hour),
			}, now)

			Expect(out).NotTo(ContainSubstring("truncated"))
		})
	})

	Describe("estimateTokens", func() {
		It("rounds up to the next whole token", func() {
			Expect(estimateTokens("")).To(BeZero())
			Expect(estimateTokens("abc")).To(Equal(1))
			Expect(estimateTokens("abcd")).To(Equal(1))
			Expect(estimateTokens("abcde")).To(Equal(2))
		})
	})
})
