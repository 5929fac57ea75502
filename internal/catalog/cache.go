package catalog

import (
	"context"
	"time"

	"github.com/dgellow/gamefront/internal/log"
	"github.com/dgellow/gamefront/internal/metrics"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// CachedFetcher memoizes successful fetches per (provider, providerId) and
// collapses concurrent fetches for the same key into one upstream call.
// Failures are never cached.
type CachedFetcher struct {
	next    Fetcher
	entries *cache.Cache
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewCachedFetcher wraps next with a cache whose entries live for ttl
func NewCachedFetcher(next Fetcher, ttl time.Duration, m *metrics.Metrics) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		entries: cache.New(ttl, 2*ttl),
		metrics: m,
	}
}

func cacheKey(cred Credential) string {
	return string(cred.Provider) + ":" + cred.ProviderID
}

// Fetch implements Fetcher
func (c *CachedFetcher) Fetch(ctx context.Context, cred Credential) ([]Game, error) {
	key := cacheKey(cred)
	if v, ok := c.entries.Get(key); ok {
		c.metrics.ObserveCacheLookup(true)
		return copyGames(v.([]Game)), nil
	}
	c.metrics.ObserveCacheLookup(false)

	v, err, shared := c.group.Do(key, func() (any, error) {
		start := time.Now()
		games, err := c.next.Fetch(ctx, cred)
		c.metrics.ObserveCatalogFetch(string(cred.Provider), err, time.Since(start))
		if err != nil {
			return nil, err
		}
		c.entries.SetDefault(key, games)
		return games, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.LogTraceWithFields("catalog", "Shared in-flight catalog fetch", map[string]any{
			"provider": cred.Provider,
		})
	}
	return copyGames(v.([]Game)), nil
}

func copyGames(games []Game) []Game {
	out := make([]Game, len(games))
	copy(out, games)
	return out
}
