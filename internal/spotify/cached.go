package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erenuysaldev/Erotify/internal/domain"
)

type Cache interface {
	GetCache(key string) ([]byte, error)
	SetCache(key string, data []byte, ttl time.Duration) error
}

// Searcher finds tracks by free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// CachedSearcher keeps search results in Cache for cacheTTL.
type CachedSearcher struct {
	searcher Searcher
	cache    Cache
	cacheTTL time.Duration
}

func NewCachedSearcher(searcher Searcher, cache Cache, cacheTTL time.Duration) *CachedSearcher {
	return &CachedSearcher{
		searcher: searcher,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (c *CachedSearcher) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	cacheKey := fmt.Sprintf("search:track:%s", strings.ToLower(strings.TrimSpace(query)))

	data, err := c.cache.GetCache(cacheKey)
	if err != nil {
		return nil, err
	}
	if data != nil {
		var results []domain.SearchResult
		if err := json.Unmarshal(data, &results); err == nil {
			return results, nil
		}
	}

	results, err := c.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		_ = c.cache.SetCache(cacheKey, data, c.cacheTTL)
	}

	return results, nil
}

var _ Searcher = (*CachedSearcher)(nil)
var _ Searcher = (*Client)(nil)
