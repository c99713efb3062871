package wordpress

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "publish-times"

// Fetcher is anything that can produce the publish time mapping.
type Fetcher interface {
	PublishTimes(ctx context.Context) (map[int]time.Time, error)
}

// Cached remembers successful fetches for a while and collapses concurrent
// fetches into one upstream walk. Failures are never cached.
//
// The shared walk is detached from any single caller and bounded by its own
// timeout; a caller that gives up early gets its context error while the walk
// carries on for the others.
//
// The returned maps are shared between callers and must not be modified.
type Cached struct {
	next         Fetcher
	fetchTimeout time.Duration
	cache        *expirable.LRU[string, map[int]time.Time]
	group        singleflight.Group
}

func NewCached(next Fetcher, ttl, fetchTimeout time.Duration) *Cached {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}

	return &Cached{
		next:         next,
		fetchTimeout: fetchTimeout,
		cache:        expirable.NewLRU[string, map[int]time.Time](1, nil, ttl),
	}
}

func (c *Cached) PublishTimes(ctx context.Context) (map[int]time.Time, error) {
	if times, ok := c.cache.Get(cacheKey); ok {
		return times, nil
	}

	ch := c.group.DoChan(cacheKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		times, err := c.next.PublishTimes(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.cache.Add(cacheKey, times)

		return times, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[int]time.Time), nil
	}
}

// Purge drops the cached mapping.
func (c *Cached) Purge() {
	c.cache.Purge()
}
