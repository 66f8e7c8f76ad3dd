package eventsearch

import (
	"math"
	"sync"

	"tsgate/internal/storemodel"
)

const maxCount = math.MaxInt32

// ParentEventCounter tracks how many descendants of each parent id have
// been admitted, implementing spec.md section 4.2 step 5: once a parent
// hits limitForParent, it (and the suppressed child's own id, so its
// descendants are denied too) are pinned at a sentinel MAX count.
type ParentEventCounter struct {
	mu     sync.Mutex
	counts map[storemodel.EventId]int
}

func NewParentEventCounter() *ParentEventCounter {
	return &ParentEventCounter{counts: make(map[storemodel.EventId]int)}
}

// Admit reports whether eventId may be emitted as a child of parentId. A
// root event (empty parentId) is always admitted.
func (c *ParentEventCounter) Admit(parentId, eventId storemodel.EventId, limit int) bool {
	if parentId == "" {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[parentId] >= maxCount {
		c.counts[eventId] = maxCount
		return false
	}

	c.counts[parentId]++
	if c.counts[parentId] > limit {
		c.counts[parentId] = maxCount
		c.counts[eventId] = maxCount
		return false
	}
	return true
}
