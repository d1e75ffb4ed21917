package cache

import (
	"time"

	"registro/internal/core"
)

// SummaryCache holds per-owner balance summaries. Any write to an owner's
// ledger must call Invalidate before the next read.
type SummaryCache struct {
	*LRUCache[core.Summary]
}

func NewSummaryCache(maxOwners int, ttl time.Duration) *SummaryCache {
	return &SummaryCache{LRUCache: NewLRUCache[core.Summary](maxOwners, ttl)}
}

func (c *SummaryCache) Lookup(ownerID string) (core.Summary, bool) {
	s, ok := c.Get(ownerID)
	if !ok {
		return core.Summary{}, false
	}
	// Callers may mutate the slice.
	s.Sequences = append([]core.SequenceBalance(nil), s.Sequences...)
	return s, true
}

func (c *SummaryCache) Store(s core.Summary) {
	c.Set(s.OwnerID, s)
}

func (c *SummaryCache) Invalidate(ownerID string) {
	c.Delete(ownerID)
}
