package resolve

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache memoises successful resolutions for a fixed TTL and collapses
// concurrent lookups of the same domain into one call.
type Cache struct {
	next    Resolver
	lru     *expirable.LRU[string, AddressList]
	group   singleflight.Group
	timeout time.Duration
}

// NewCache wraps next with an LRU of size entries. The shared resolution
// for a domain is detached from any single caller's cancellation and bounded
// by timeout instead (no bound when timeout <= 0).
func NewCache(next Resolver, size int, ttl, timeout time.Duration) *Cache {
	return &Cache{
		next:    next,
		lru:     expirable.NewLRU[string, AddressList](size, nil, ttl),
		timeout: timeout,
	}
}

// Resolve returns a cached list when present, otherwise resolves through
// the wrapped resolver. Failed resolutions are not cached. A caller whose ctx
// ends stops waiting without failing the others sharing the call.
func (c *Cache) Resolve(ctx context.Context, domain string) (AddressList, error) {
	if list, ok := c.lru.Get(domain); ok {
		return slices.Clone(list), nil
	}

	ch := c.group.DoChan(domain, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, c.timeout)
			defer cancel()
		}
		list, err := c.next.Resolve(shared, domain)
		if err == nil {
			c.lru.Add(domain, list)
		}
		return list, err
	})

	select {
	case res := <-ch:
		list, _ := res.Val.(AddressList)
		return slices.Clone(list), res.Err
	case <-ctx.Done():
		return AddressList{}, fmt.Errorf("%w: %w", ErrResolveFailed, ctx.Err())
	}
}

// Len returns the number of cached domains.
func (c *Cache) Len() int {
	return c.lru.Len()
}
