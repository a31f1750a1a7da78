package core

import (
	"context"
	"fmt"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// Matcher resolves context signals to a ranked set of project candidates.
// Strategy order: exact code, full-text search, common-projects cache,
// then the configured G&A fallback.
type Matcher struct {
	catalog        contract.ProjectCatalog
	cache          *CommonCache
	limit          int
	fuzzyThreshold float64
	fallbackCode   string
}

// NewMatcher builds a matcher over the given catalog and cache.
func NewMatcher(catalog contract.ProjectCatalog, cache *CommonCache, cfg *contract.Config) *Matcher {
	return &Matcher{
		catalog:        catalog,
		cache:          cache,
		limit:          cfg.MatchLimit,
		fuzzyThreshold: contract.DefaultFuzzyThreshold,
		fallbackCode:   cfg.FallbackCode,
	}
}

// CheckCatalog verifies the catalog is usable before a batch run: an empty
// catalog is an error, a stale one only a warning string.
func (m *Matcher) CheckCatalog(ctx context.Context, staleAfter time.Duration) (string, error) {
	status, err := m.catalog.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read catalog status: %w", err)
	}
	if status.ActiveCount == 0 {
		return "", schema.ErrEmptyCatalog
	}
	if staleAfter > 0 && !status.LastSync.IsZero() && time.Since(status.LastSync) > staleAfter {
		return fmt.Sprintf("catalog last synced %s ago", time.Since(status.LastSync).Round(time.Hour)), nil
	}
	return "", nil
}

// Match returns ranked project candidates for the given signals, possibly
// empty. Results are deduplicated by code, keeping the highest-confidence
// method per code, and sorted descending by confidence.
func (m *Matcher) Match(ctx context.Context, sig schema.ContextSignals) ([]schema.ProjectMatch, error) {
	var candidates []schema.ProjectMatch

	// (a) Exact code match on any extracted identifier.
	for _, ident := range sig.Identifiers {
		entry, err := m.catalog.Exact(ctx, ident)
		if err != nil {
			return nil, fmt.Errorf("exact lookup for %q failed: %w", ident, err)
		}
		if entry == nil {
			continue
		}
		candidates = append(candidates, schema.ProjectMatch{
			Code:        entry.Code,
			Description: entry.Description,
			Confidence:  1.0,
			Method:      schema.ExactCodeMatch,
			Evidence:    []string{"code " + ident},
		})
	}

	// (b) Full-text search over the concatenated signal tokens.
	tokens := sig.Tokens()
	if len(tokens) > 0 {
		hits, err := m.catalog.Search(ctx, tokens, m.limit)
		if err != nil {
			return nil, fmt.Errorf("catalog search failed: %w", err)
		}
		for _, hit := range hits {
			candidates = append(candidates, schema.ProjectMatch{
				Code:        hit.Entry.Code,
				Description: hit.Entry.Description,
				Confidence:  normalizeRelevance(hit.Relevance),
				Method:      schema.FuzzyTextMatch,
				Evidence:    []string{fmt.Sprintf("text match (relevance %.2f)", hit.Relevance)},
			})
		}
	}

	// (c) Common-projects cache when search came back weak.
	if m.cache != nil && bestConfidence(candidates) < m.fuzzyThreshold {
		candidates = append(candidates, m.cache.Candidates(tokens)...)
	}

	// (d) Configured fallback code at nominal confidence.
	if len(candidates) == 0 && m.fallbackCode != "" && !sig.Personal {
		if entry, err := m.catalog.Exact(ctx, m.fallbackCode); err == nil && entry != nil {
			candidates = append(candidates, schema.ProjectMatch{
				Code:        entry.Code,
				Description: entry.Description,
				Confidence:  contract.DefaultFallbackConfidence,
				Method:      schema.FallbackMatch,
				Evidence:    []string{"general & administrative fallback"},
			})
		}
	}

	ranked := dedupeMatches(candidates)
	if len(ranked) > m.limit {
		ranked = ranked[:m.limit]
	}

	// Feed the cache and the catalog's frequency counter with the winner.
	if len(ranked) > 0 && ranked[0].Method != schema.FallbackMatch {
		winner := ranked[0]
		if m.cache != nil {
			m.cache.Record(schema.WbsEntry{Code: winner.Code, Description: winner.Description, Active: true})
		}
		_ = m.catalog.RecordMatch(ctx, winner.Code)
	}
	return ranked, nil
}

// normalizeRelevance maps a store-normalized relevance score (>= 0, higher
// is better) into [0, 1), strictly below exact-match confidence.
func normalizeRelevance(relevance float64) float64 {
	if relevance <= 0 {
		return 0
	}
	score := relevance / (relevance + 1)
	if score > 0.99 {
		score = 0.99
	}
	return score
}

// bestConfidence returns the highest confidence among candidates, 0 when
// empty.
func bestConfidence(candidates []schema.ProjectMatch) float64 {
	var best float64
	for _, c := range candidates {
		if c.Confidence > best {
			best = c.Confidence
		}
	}
	return best
}

// dedupeMatches keeps one candidate per project code, preferring the
// higher confidence and, on equal confidence, the higher-priority method.
// The survivors are returned sorted.
func dedupeMatches(candidates []schema.ProjectMatch) []schema.ProjectMatch {
	byCode := make(map[string]schema.ProjectMatch, len(candidates))
	for _, cand := range candidates {
		cur, ok := byCode[cand.Code]
		if !ok {
			byCode[cand.Code] = cand
			continue
		}
		if cand.Confidence > cur.Confidence ||
			(cand.Confidence == cur.Confidence &&
				schema.MethodPriority(cand.Method) < schema.MethodPriority(cur.Method)) {
			byCode[cand.Code] = cand
		}
	}
	out := make([]schema.ProjectMatch, 0, len(byCode))
	for _, cand := range byCode {
		out = append(out, cand)
	}
	schema.SortMatches(out)
	return out
}
