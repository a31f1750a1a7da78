package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// Cached-match confidence shaping. A cache hit is never allowed to rival a
// direct fuzzy hit, so its ceiling sits below typical fuzzy scores.
const (
	cacheBaseConfidence = 0.30
	cacheFreqBonus      = 0.25
	cacheFreqSaturation = 10
)

// CommonCache is the frequency/recency-weighted cache of commonly used
// projects, consulted when full-text search returns low-confidence or no
// results. It is explicitly owned and passed in, never ambient, so tests
// can inject a fresh or pre-seeded instance.
type CommonCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	max     int
}

type cacheEntry struct {
	entry   schema.WbsEntry
	hits    int
	lastHit time.Time
}

// NewCommonCache builds an empty cache holding at most max entries.
// max <= 0 disables the cache.
func NewCommonCache(max int) *CommonCache {
	return &CommonCache{
		entries: make(map[string]*cacheEntry),
		max:     max,
	}
}

// WarmUp seeds the cache with the most frequently matched projects from
// the catalog. A warm-up failure leaves the cache empty, never errors the
// run.
func (c *CommonCache) WarmUp(ctx context.Context, catalog contract.ProjectCatalog) error {
	if c.max <= 0 {
		return nil
	}
	common, err := catalog.MostMatched(ctx, c.max)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range common {
		c.entries[entry.Code] = &cacheEntry{
			entry: entry,
			// Seed order approximates historical frequency.
			hits:    len(common) - i,
			lastHit: time.Now(),
		}
	}
	return nil
}

// Record notes a successful match so the project rises in the cache.
func (c *CommonCache) Record(entry schema.WbsEntry) {
	if c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.entries[entry.Code]; ok {
		cached.hits++
		cached.lastHit = time.Now()
		return
	}
	if len(c.entries) >= c.max {
		c.evictColdest()
	}
	c.entries[entry.Code] = &cacheEntry{entry: entry, hits: 1, lastHit: time.Now()}
}

// evictColdest removes the entry with the fewest hits, oldest first on
// ties. Callers hold the write lock.
func (c *CommonCache) evictColdest() {
	var coldKey string
	var cold *cacheEntry
	for key, entry := range c.entries {
		if cold == nil || entry.hits < cold.hits ||
			(entry.hits == cold.hits && entry.lastHit.Before(cold.lastHit)) {
			coldKey, cold = key, entry
		}
	}
	if coldKey != "" {
		delete(c.entries, coldKey)
	}
}

// Candidates returns cached projects whose code, description, or tokens
// overlap the query tokens, with confidence weighted by hit frequency.
func (c *CommonCache) Candidates(tokens []string) []schema.ProjectMatch {
	if c.max <= 0 || len(tokens) == 0 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []schema.ProjectMatch
	for _, cached := range c.entries {
		evidence := c.overlap(cached, tokens)
		if evidence == "" {
			continue
		}
		freq := float64(cached.hits) / cacheFreqSaturation
		if freq > 1 {
			freq = 1
		}
		out = append(out, schema.ProjectMatch{
			Code:        cached.entry.Code,
			Description: cached.entry.Description,
			Confidence:  cacheBaseConfidence + cacheFreqBonus*freq,
			Method:      schema.CachedMatch,
			Evidence:    []string{"common project: " + evidence},
		})
	}
	schema.SortMatches(out)
	return out
}

// overlap returns the first query token found in the cached entry, or "".
func (c *CommonCache) overlap(cached *cacheEntry, tokens []string) string {
	desc := strings.ToLower(cached.entry.Description)
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if lower == strings.ToLower(cached.entry.Code) {
			return tok
		}
		if len(lower) > 3 && strings.Contains(desc, lower) {
			return tok
		}
		for _, cand := range cached.entry.Tokens {
			if strings.EqualFold(cand, tok) {
				return tok
			}
		}
	}
	return ""
}

// Len returns the number of cached projects.
func (c *CommonCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
