package taxdb

import (
	"sync"

	"github.com/starford/taxonid/internal/models"
)

const defaultCacheSize = 4096

type rankEntry struct {
	rank  string
	found bool
}

// cache memoizes lineage and rank lookups. When either map reaches size it
// is dropped wholesale.
type cache struct {
	mu       sync.RWMutex
	size     int
	lineages map[models.TaxID][]models.TaxID
	ranks    map[models.TaxID]rankEntry
}

func newCache(size int) *cache {
	return &cache{
		size:     size,
		lineages: make(map[models.TaxID][]models.TaxID),
		ranks:    make(map[models.TaxID]rankEntry),
	}
}

func (c *cache) lineage(id models.TaxID) ([]models.TaxID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.lineages[id]
	return l, ok
}

func (c *cache) putLineage(id models.TaxID, l []models.TaxID) {
	if c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lineages) >= c.size {
		c.lineages = make(map[models.TaxID][]models.TaxID)
	}
	c.lineages[id] = l
}

func (c *cache) rank(id models.TaxID) (rankEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.ranks[id]
	return e, ok
}

func (c *cache) putRank(id models.TaxID, e rankEntry) {
	if c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ranks) >= c.size {
		c.ranks = make(map[models.TaxID]rankEntry)
	}
	c.ranks[id] = e
}

func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lineages = make(map[models.TaxID][]models.TaxID)
	c.ranks = make(map[models.TaxID]rankEntry)
}

// Invalidate drops every cached lookup. Call it after the database file changes.
func (db *DB) Invalidate() {
	db.cache.reset()
}
