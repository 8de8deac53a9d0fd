package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// DefaultCacheTTL is how long fetched projects and tags are reused.
const DefaultCacheTTL = 5 * time.Second

// CacheEntry is one fetched value and when it was fetched.
type CacheEntry[T any] struct {
	Data      T
	Timestamp time.Time
}

// DataCache is a short-lived read-through cache over host lookups that
// conditions and actions repeat for every event. Concurrent misses may fetch
// twice; the last result wins.
type DataCache struct {
	host host.Host
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	projects *CacheEntry[[]host.Project]
	tags     *CacheEntry[[]host.Tag]
}

// NewDataCache creates a cache. A non-positive ttl selects DefaultCacheTTL.
func NewDataCache(h host.Host, ttl time.Duration) *DataCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DataCache{host: h, ttl: ttl, now: time.Now}
}

// SetClock replaces the time source. Used by tests.
func (c *DataCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func readThrough[T any](c *DataCache, slot **CacheEntry[T], fetch func() (T, error)) (T, error) {
	c.mu.Lock()
	entry := *slot
	now := c.now()
	c.mu.Unlock()

	if entry != nil && now.Sub(entry.Timestamp) < c.ttl {
		return entry.Data, nil
	}

	data, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	*slot = &CacheEntry[T]{Data: data, Timestamp: now}
	c.mu.Unlock()
	return data, nil
}

// Projects returns the host's projects, fetching them when the cached copy
// is missing or stale.
func (c *DataCache) Projects(ctx context.Context) ([]host.Project, error) {
	return readThrough(c, &c.projects, func() ([]host.Project, error) {
		p, err := c.host.Projects(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch projects: %w", err)
		}
		return p, nil
	})
}

// Tags returns the host's tags, fetching them when the cached copy is
// missing or stale.
func (c *DataCache) Tags(ctx context.Context) ([]host.Tag, error) {
	return readThrough(c, &c.tags, func() ([]host.Tag, error) {
		t, err := c.host.Tags(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch tags: %w", err)
		}
		return t, nil
	})
}

// ProjectByID looks a project up by id.
func (c *DataCache) ProjectByID(ctx context.Context, id string) (host.Project, bool, error) {
	projects, err := c.Projects(ctx)
	if err != nil {
		return host.Project{}, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return host.Project{}, false, nil
}

// TagByTitle looks a tag up by its exact title.
func (c *DataCache) TagByTitle(ctx context.Context, title string) (host.Tag, bool, error) {
	tags, err := c.Tags(ctx)
	if err != nil {
		return host.Tag{}, false, err
	}
	for _, t := range tags {
		if t.Title == title {
			return t, true, nil
		}
	}
	return host.Tag{}, false, nil
}

// Invalidate drops both cached lists.
func (c *DataCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = nil
	c.tags = nil
}
