package service

import (
	"context"
	"encoding/json"

	"ai-accelerator-be/internal/cache"
	"ai-accelerator-be/internal/dto"
)

// cachedConfigService layers the keyed-value config cache over the registry.
// Versions are immutable so cached reads never serve stale documents. Writes
// and listings always go to the registry.
type cachedConfigService struct {
	IConfigService
	client *cache.CachingConfigClient
}

func NewCachedConfigService(base IConfigService, client *cache.CachingConfigClient) IConfigService {
	return &cachedConfigService{
		IConfigService: base,
		client:         client,
	}
}

func (s *cachedConfigService) Get(ctx context.Context, configType dto.ConfigType, configVersion string) (*dto.ConfigDocument, error) {
	if !configType.Valid() {
		return s.IConfigService.Get(ctx, configType, configVersion)
	}
	body, err := s.client.GetConfigBody(ctx, string(configType), configVersion)
	if err != nil {
		return nil, err
	}
	return &dto.ConfigDocument{
		ConfigType:    configType,
		ConfigVersion: configVersion,
		ConfigBody:    json.RawMessage(body),
	}, nil
}

func (s *cachedConfigService) GetConfigBody(ctx context.Context, configType, configVersion string) ([]byte, error) {
	return s.client.GetConfigBody(ctx, configType, configVersion)
}
