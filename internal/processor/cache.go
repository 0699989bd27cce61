package processor

import (
	"sync"
	"time"

	"github.com/dataherd/dataherd/internal/rules"
	"github.com/dataherd/dataherd/internal/types"
)

// DefaultPreviewTTL bounds how long a preview stays reusable by a commit.
const DefaultPreviewTTL = 10 * time.Minute

// previewEntry is one cached evaluation. A commit may reuse it instead of
// re-translating and re-evaluating, but only while the batch is unchanged:
// the generation counter advances on every mutation, stamping older previews
// stale regardless of TTL.
type previewEntry struct {
	ruleText      string
	clientContext string
	ruleSet       []types.Rule
	translated    []types.Rule
	result        rules.EvalResult
	totalRecords  int
	generation    uint64
	expires       time.Time
}

type previewCache struct {
	mu      sync.Mutex
	entries map[types.BatchID]*previewEntry
	gen     map[types.BatchID]uint64
	ttl     time.Duration
}

func newPreviewCache(ttl time.Duration) *previewCache {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &previewCache{
		entries: make(map[types.BatchID]*previewEntry),
		gen:     make(map[types.BatchID]uint64),
		ttl:     ttl,
	}
}

// currentGen reads the batch generation. Callers snapshot it before reading
// records so an entry is stamped with the state it was computed against, not
// the state at insertion time.
func (c *previewCache) currentGen(batchID types.BatchID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[batchID]
}

func (c *previewCache) put(batchID types.BatchID, e *previewEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.expires = time.Now().Add(c.ttl)
	c.entries[batchID] = e
}

// lookup returns the cached entry when it matches the request and is still
// fresh. A miss returns nil; the caller recomputes.
func (c *previewCache) lookup(batchID types.BatchID, ruleText, clientContext string) *previewEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[batchID]
	if !ok {
		return nil
	}
	if e.ruleText != ruleText || e.clientContext != clientContext {
		return nil
	}
	if e.generation != c.gen[batchID] || time.Now().After(e.expires) {
		return nil
	}
	return e
}

// invalidate advances the batch generation after a mutation, orphaning any
// preview computed against the previous record state.
func (c *previewCache) invalidate(batchID types.BatchID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[batchID]++
	delete(c.entries, batchID)
}
