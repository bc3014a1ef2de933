package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"sjsage522/pricemonitor/internal/crawler"
	"sjsage522/pricemonitor/logger"
	perrors "sjsage522/pricemonitor/pkg/errors"
)

const resultKeyPrefix = "price:"

// ResultCache keeps recent successful resolutions so an interactive add
// does not hit the shop for a page the monitor just fetched
type ResultCache struct {
	svc CacheService
	ttl time.Duration
	log *logger.Logger
}

// NewResultCache creates a result cache. A nil svc disables caching.
func NewResultCache(svc CacheService, ttl time.Duration) *ResultCache {
	return &ResultCache{
		svc: svc,
		ttl: ttl,
		log: logger.ForCache(),
	}
}

// resultKey hashes the URL; memcache keys are limited to 250 bytes without spaces
func resultKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return resultKeyPrefix + hex.EncodeToString(sum[:])
}

// Lookup returns a cached result for url. Misses and backend failures both report false.
func (c *ResultCache) Lookup(url string) (*crawler.PriceResult, bool) {
	if c == nil || c.svc == nil || c.ttl <= 0 {
		return nil, false
	}

	data, err := c.svc.Get(resultKey(url))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Warn().Err(perrors.NewCache(url, "lookup failed", err)).Msg("Result cache unavailable")
		}
		return nil, false
	}

	var res crawler.PriceResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("Discarding undecodable cache entry")
		return nil, false
	}
	c.log.Debug().Str("url", url).Msg("Result cache hit")
	return &res, true
}

// Store caches res under its URL for the configured TTL
func (c *ResultCache) Store(res *crawler.PriceResult) error {
	if c == nil || c.svc == nil || c.ttl <= 0 || res == nil {
		return nil
	}

	data, err := json.Marshal(res)
	if err != nil {
		return perrors.NewCache(res.URL, "failed to encode result", err)
	}
	if err := c.svc.Set(resultKey(res.URL), data, c.ttl); err != nil {
		return perrors.NewCache(res.URL, "failed to store result", err)
	}
	return nil
}

// Forget drops the cached result for url
func (c *ResultCache) Forget(url string) error {
	if c == nil || c.svc == nil {
		return nil
	}
	if err := c.svc.Delete(resultKey(url)); err != nil {
		return perrors.NewCache(url, "failed to delete result", err)
	}
	return nil
}
