package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// factTag is the closed set of identity-like fact classes that can conflict.
// Two memories with the same tag but different content for the same user
// describe the same attribute, so the newer one supersedes the older.
type factTag string

const (
	tagNone     factTag = ""
	tagName     factTag = "name"
	tagEmail    factTag = "email"
	tagPhone    factTag = "phone"
	tagCompany  factTag = "company"
	tagLocation factTag = "location"
)

var (
	tagNameRe     = regexp.MustCompile(`(?i)\bname\b.{0,30}\bis\b|\bcalled\b|\bcall\s+(?:me|him|her|them)\b`)
	tagEmailCtxRe = regexp.MustCompile(`(?i)\be-?mail\b`)
	tagPhoneCtxRe = regexp.MustCompile(`(?i)\b(?:phone|call|reach)\b`)
	tagPhoneNumRe = regexp.MustCompile(`\d{3}[-.\s]?\d{3,4}(?:[-.\s]?\d{2,4})?`)
	tagCompanyRe  = regexp.MustCompile(`(?i)\bworks?\s+(?:at|for)\b|\bemployed\s+by\b`)
	tagLocationRe = regexp.MustCompile(`(?i)\blives?\s+in\b|\bis\s+from\b|\blocated\s+in\b|\bbased\s+in\b`)
)

// classifyFactTag assigns content to a fact-type tag via fixed pattern
// rules. First match wins; untaggable content returns tagNone and is never
// conflict-checked.
func classifyFactTag(content string) factTag {
	switch {
	case tagNameRe.MatchString(content):
		return tagName
	case strings.Contains(content, "@") && tagEmailCtxRe.MatchString(content):
		return tagEmail
	case tagPhoneCtxRe.MatchString(content) && tagPhoneNumRe.MatchString(content):
		return tagPhone
	case tagCompanyRe.MatchString(content):
		return tagCompany
	case tagLocationRe.MatchString(content):
		return tagLocation
	default:
		return tagNone
	}
}

// Resolver detects when a new fact supersedes an existing memory.
type Resolver struct {
	store  *Store
	logger *zap.Logger
}

// NewResolver creates a conflict resolver over the given store.
func NewResolver(store *Store, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// FindConflict returns the existing memory the new fact supersedes, or nil
// when there is none. Only preference and extracted_fact facts participate.
// Candidates are scanned oldest-first (sorted by timestamp, since store
// return order is not guaranteed) and the first memory sharing the fact's
// tag with case-insensitively different content wins. At most one memory is
// treated as superseded per new fact.
func (r *Resolver) FindConflict(ctx context.Context, userID string, fact ExtractedFact) (*Memory, error) {
	if fact.Type != TypePreference && fact.Type != TypeExtractedFact {
		return nil, nil
	}

	tag := classifyFactTag(fact.Content)
	if tag == tagNone {
		return nil, nil
	}

	existing, err := r.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Timestamp.Before(existing[j].Timestamp)
	})

	for _, mem := range existing {
		if mem.Type == TypeConversation {
			continue
		}
		if classifyFactTag(mem.Content) != tag {
			continue
		}
		if strings.EqualFold(mem.Content, fact.Content) {
			continue
		}

		r.logger.Debug("conflicting memory found",
			zap.String("tag", string(tag)),
			zap.String("existing_id", mem.ID),
			zap.String("user_id", userID),
		)
		return mem, nil
	}

	return nil, nil
}
