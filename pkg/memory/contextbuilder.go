package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/recall/pkg/utils"
)

// DefaultMaxContextTokens caps the assembled context block size.
const DefaultMaxContextTokens = 2000

// markerAllowance reserves room for the truncation marker so an assembled
// block never exceeds its budget even when truncated.
const markerAllowance = 10

// estimateTokens approximates token count as ceil(characters / 4).
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// contextSection describes one priority-ordered block of the assembled
// context. Sections are filled in declaration order; each memory lands in
// the first section whose predicate matches.
type contextSection struct {
	header   string
	maxItems int
	maxChars int
	match    func(*Memory) bool
}

var contextSections = []contextSection{
	{
		header:   "=== CUSTOMER PROFILE ===",
		maxItems: 10,
		maxChars: 150,
		match: func(m *Memory) bool {
			return m.Type == TypePreference || m.Type == TypeExtractedFact
		},
	},
	{
		header:   "=== KNOWN ISSUES ===",
		maxItems: 5,
		maxChars: 120,
		match: func(m *Memory) bool {
			return m.Category == CategoryBugReport
		},
	},
	{
		header:   "=== FEATURE REQUESTS ===",
		maxItems: 5,
		maxChars: 120,
		match: func(m *Memory) bool {
			return m.Category == CategoryFeatureRequest
		},
	},
	{
		header:   "=== SENTIMENT HISTORY ===",
		maxItems: 3,
		maxChars: 100,
		match: func(m *Memory) bool {
			return m.Type == TypeSentiment
		},
	},
	{
		header:   "=== RECENT INTERACTIONS ===",
		maxItems: 3,
		maxChars: 200,
		match: func(m *Memory) bool {
			return m.Type == TypeConversation
		},
	},
}

// ContextBuilder turns a ranked memory set into a token-budgeted,
// section-grouped prompt block.
type ContextBuilder struct {
	maxTokens int
}

// NewContextBuilder creates a builder. A maxTokens <= 0 selects
// DefaultMaxContextTokens.
func NewContextBuilder(maxTokens int) *ContextBuilder {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	return &ContextBuilder{maxTokens: maxTokens}
}

// Build assembles the context block. Memories are re-scored by
// importance*0.7 + recency*0.3 (a second ranking pass independent of
// retrieval's composite score), then grouped into fixed-priority sections.
// The moment adding a line would exceed the token budget, a single
// truncation marker naming the dropped item count is emitted and processing
// stops entirely.
func (b *ContextBuilder) Build(memories []*Memory, now time.Time) string {
	if len(memories) == 0 {
		return ""
	}

	ranked := make([]*Memory, len(memories))
	copy(ranked, memories)
	stableSortByAssemblyScore(ranked, now)

	// Partition into sections; each memory goes to the first match and
	// sections stop accepting once full.
	buckets := make([][]*Memory, len(contextSections))
	for _, mem := range ranked {
		for i, sec := range contextSections {
			if !sec.match(mem) {
				continue
			}
			if len(buckets[i]) < sec.maxItems {
				buckets[i] = append(buckets[i], mem)
			}
			break
		}
	}

	total := 0
	for _, bucket := range buckets {
		total += len(bucket)
	}

	var (
		sb      strings.Builder
		used    int
		emitted int
	)

	budget := b.maxTokens - markerAllowance

	appendLine := func(line string) bool {
		cost := estimateTokens(line)
		if used+cost > budget {
			return false
		}
		sb.WriteString(line)
		used += cost
		return true
	}

	truncate := func() string {
		marker := fmt.Sprintf("... [%d more memories truncated]", total-emitted)
		sb.WriteString(marker)
		return sb.String()
	}

	for i, sec := range contextSections {
		if len(buckets[i]) == 0 {
			continue
		}
		if !appendLine(sec.header + "\n") {
			return truncate()
		}
		for n, mem := range buckets[i] {
			line := fmt.Sprintf("%d. [%s] %s\n",
				n+1,
				ageDescriptor(mem.Timestamp, now),
				utils.Truncate(mem.Content, sec.maxChars),
			)
			if !appendLine(line) {
				return truncate()
			}
			emitted++
		}
		if !appendLine("\n") {
			return truncate()
		}
	}

	return sb.String()
}

// stableSortByAssemblyScore orders memories by importance*0.7 + recency*0.3
// descending, keeping input order for ties.
func stableSortByAssemblyScore(mems []*Memory, now time.Time) {
	score := func(m *Memory) float64 {
		return m.Importance*0.7 + recencyScore(m.Timestamp, now)*0.3
	}
	sort.SliceStable(mems, func(i, j int) bool {
		return score(mems[i]) > score(mems[j])
	})
}

// ageDescriptor renders a coarse age prefix for a context line.
func ageDescriptor(ts, now time.Time) string {
	days := int(now.Sub(ts).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
