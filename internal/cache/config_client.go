package cache

import (
	"context"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"
)

// ConfigFetcher is the slice of the config registry the caching client needs.
type ConfigFetcher interface {
	GetConfigBody(ctx context.Context, configType, configVersion string) ([]byte, error)
}

// CachingConfigClient serves config documents from a Store and falls back to
// the registry on miss. Versions are immutable, so cached entries never go
// stale and a lost Set race is harmless.
type CachingConfigClient struct {
	store   Store
	fetcher ConfigFetcher
	logger  logger.ILogger
}

func NewCachingConfigClient(store Store, fetcher ConfigFetcher, log logger.ILogger) *CachingConfigClient {
	return &CachingConfigClient{store: store, fetcher: fetcher, logger: log}
}

func configCacheKey(configType, configVersion string) string {
	return "config:" + configType + ":" + configVersion
}

func (c *CachingConfigClient) GetConfigBody(ctx context.Context, configType, configVersion string) ([]byte, error) {
	key := configCacheKey(configType, configVersion)

	body, err := c.store.Get(ctx, key)
	if err == nil {
		return body, nil
	}
	if apperror.KindOf(err) != apperror.KindCacheKeyNotFound {
		c.logger.Warn("config_cache", "cache read failed, falling back to registry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	body, err = c.fetcher.GetConfigBody(ctx, configType, configVersion)
	if err != nil {
		return nil, err
	}

	if setErr := c.store.Set(ctx, key, body); setErr != nil {
		if apperror.KindOf(setErr) != apperror.KindCacheKeyExists {
			c.logger.Warn("config_cache", "cache write failed", map[string]interface{}{
				"key":   key,
				"error": setErr.Error(),
			})
		}
		// Another writer won the race. Prefer its copy when readable.
		if cached, getErr := c.store.Get(ctx, key); getErr == nil {
			return cached, nil
		}
	}
	return body, nil
}

func (c *CachingConfigClient) Invalidate(ctx context.Context, configType, configVersion string) error {
	return c.store.Delete(ctx, configCacheKey(configType, configVersion))
}
