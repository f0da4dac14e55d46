package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/llm"
	"github.com/recallhq/recall/pkg/utils"
)

const (
	// maxFactContentLen is the longest accepted fact content.
	maxFactContentLen = 500

	// minFactConfidence rejects low-confidence extractions outright.
	minFactConfidence = 0.5

	// Defaults applied when the model omits or mangles a numeric field.
	defaultFactImportance = 0.5
	defaultFactConfidence = 0.7
)

const extractionPrompt = `You extract durable facts about the user from their message.
Extract ONLY what the user explicitly stated: names, contact info, location,
problems they reported, requests they made, preferences, and sentiment.
Do not infer or speculate.

Respond with a JSON array (no prose, no markdown) of objects with fields:
  content     - the fact, stated in third person, under 500 characters
  importance  - number in [0,1]
  confidence  - number in [0,1]
  type        - one of: conversation, extracted_fact, preference, sentiment, event
  category    - one of: bug_report, feature_request, question, feedback, technical, general

Return [] when the message contains no extractable facts.`

// Extractor turns a user message into zero or more candidate facts.
// The primary path asks the chat model for structured JSON; any failure
// there switches to a deterministic keyword extractor, so extraction as a
// whole never fails.
type Extractor struct {
	model  llm.ChatModel
	logger *zap.Logger
}

// NewExtractor creates a fact extractor backed by the given chat model.
func NewExtractor(model llm.ChatModel, logger *zap.Logger) *Extractor {
	return &Extractor{
		model:  model,
		logger: logger,
	}
}

// Extract returns candidate facts for the interaction's user message, in
// extractor order, with no cap on count. An empty slice is a valid result.
func (e *Extractor) Extract(ctx context.Context, interaction Interaction) []ExtractedFact {
	reply, err := e.model.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: extractionPrompt},
		{Role: llm.RoleUser, Content: interaction.UserMessage},
	})
	if err != nil {
		e.logger.Warn("fact extraction model call failed, using keyword fallback",
			zap.Error(err),
		)
		return keywordFacts(interaction.UserMessage)
	}

	facts, err := parseFacts(reply)
	if err != nil {
		e.logger.Debug("fact extraction reply unparseable, using keyword fallback",
			zap.Error(err),
			zap.String("reply", utils.Truncate(reply, 200)),
		)
		return keywordFacts(interaction.UserMessage)
	}

	e.logger.Debug("facts extracted",
		zap.Int("count", len(facts)),
		zap.String("user_id", interaction.UserID),
	)
	return facts
}

// parseFacts decodes the model's reply into validated facts. An unparseable
// reply or a non-array payload is an error (the caller falls back); a single
// malformed fact is repaired by defaulting or dropped without aborting the
// batch.
func parseFacts(reply string) ([]ExtractedFact, error) {
	payload := stripCodeFences(reply)

	var raw []map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decoding fact array: %w", err)
	}

	facts := make([]ExtractedFact, 0, len(raw))
	for _, entry := range raw {
		content, ok := entry["content"].(string)
		if !ok || content == "" || len(content) > maxFactContentLen {
			continue
		}

		confidence := parseScore(entry["confidence"], defaultFactConfidence)
		if confidence < minFactConfidence {
			continue
		}

		typeStr, _ := entry["type"].(string)
		categoryStr, _ := entry["category"].(string)

		facts = append(facts, ExtractedFact{
			Content:    content,
			Importance: parseScore(entry["importance"], defaultFactImportance),
			Confidence: confidence,
			Type:       ParseType(typeStr, TypeExtractedFact),
			Category:   ParseCategory(categoryStr),
		})
	}

	return facts, nil
}

// parseScore coerces a JSON value into a [0,1] float, defaulting when the
// field is missing or not a number.
func parseScore(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return clamp01(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return clamp01(f)
		}
	}
	return def
}

// stripCodeFences unwraps a ```json ... ``` (or bare ```) wrapper if the
// model added one.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// Keyword fallback rules. Each rule emits at most one canned-template fact
// with a fixed importance weight. The fallback never fails; it may return an
// empty list.
var (
	rememberRe   = regexp.MustCompile(`(?i)\b(remember|don't forget|do not forget)\b`)
	nameRe       = regexp.MustCompile(`(?i)\b(?:my name is|call me)\s+([A-Za-z][A-Za-z'-]*)`)
	emailRe      = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	companyRe    = regexp.MustCompile(`(?i)\b(?:i work (?:at|for)|my company is)\s+([A-Za-z][A-Za-z0-9&. -]*?)(?:[.,!?]|$)`)
	bugRe        = regexp.MustCompile(`(?i)\b(broken|error|not working|crash(?:es|ed)?|fail(?:s|ed|ing)?|bug)\b`)
	featureRe    = regexp.MustCompile(`(?i)\b(want|need|wish|would be great|would love)\b`)
	preferenceRe = regexp.MustCompile(`(?i)\b(prefer|i like|i love|favorite|favourite)\b`)
)

func keywordFacts(message string) []ExtractedFact {
	var facts []ExtractedFact

	if rememberRe.MatchString(message) {
		facts = append(facts, ExtractedFact{
			Content:    "User asked to remember: " + utils.Truncate(message, 200),
			Importance: 0.95,
			Confidence: 0.9,
			Type:       TypeExtractedFact,
			Category:   CategoryGeneral,
		})
	}

	if m := nameRe.FindStringSubmatch(message); m != nil {
		facts = append(facts, ExtractedFact{
			Content:    "User's name is " + m[1],
			Importance: 0.9,
			Confidence: 0.95,
			Type:       TypeExtractedFact,
			Category:   CategoryGeneral,
		})
	}

	if m := emailRe.FindString(message); m != "" {
		facts = append(facts, ExtractedFact{
			Content:    "User's email is " + m,
			Importance: 0.9,
			Confidence: 0.95,
			Type:       TypeExtractedFact,
			Category:   CategoryGeneral,
		})
	}

	if m := companyRe.FindStringSubmatch(message); m != nil {
		facts = append(facts, ExtractedFact{
			Content:    "User works at " + strings.TrimSpace(m[1]),
			Importance: 0.7,
			Confidence: 0.8,
			Type:       TypeExtractedFact,
			Category:   CategoryGeneral,
		})
	}

	if bugRe.MatchString(message) {
		facts = append(facts, ExtractedFact{
			Content:    "User reported an issue: " + utils.Truncate(message, 200),
			Importance: 0.8,
			Confidence: 0.8,
			Type:       TypeEvent,
			Category:   CategoryBugReport,
		})
	}

	if featureRe.MatchString(message) && !bugRe.MatchString(message) {
		facts = append(facts, ExtractedFact{
			Content:    "User requested: " + utils.Truncate(message, 200),
			Importance: 0.7,
			Confidence: 0.7,
			Type:       TypeExtractedFact,
			Category:   CategoryFeatureRequest,
		})
	}

	if preferenceRe.MatchString(message) {
		facts = append(facts, ExtractedFact{
			Content:    "User preference: " + utils.Truncate(message, 200),
			Importance: 0.6,
			Confidence: 0.7,
			Type:       TypePreference,
			Category:   CategoryGeneral,
		})
	}

	return facts
}
