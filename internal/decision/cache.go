package decision

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"fusion-trader/internal/types"
)

// Cache keeps recent DecisionResults so read paths do not recompute them.
type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewCache(maxEntries int64, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// cost is counted in entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("decision cache: %w", err)
	}
	return &Cache{c: c, ttl: ttl}, nil
}

func (c *Cache) Get(instrument string) (types.DecisionResult, bool) {
	v, ok := c.c.Get(instrument)
	if !ok {
		return types.DecisionResult{}, false
	}
	res, ok := v.(types.DecisionResult)
	return res, ok
}

// Set stores res; ristretto admits asynchronously, so Wait is called to make
// the entry visible to the next Get.
func (c *Cache) Set(res types.DecisionResult) {
	c.c.SetWithTTL(res.Instrument, res, 1, c.ttl)
	c.c.Wait()
}

func (c *Cache) Del(instrument string) { c.c.Del(instrument) }

func (c *Cache) Close() { c.c.Close() }
