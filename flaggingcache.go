package labflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// FlaggingConfigCache keeps the active rule set per parameter in front of the
// repository. A cache failure is never surfaced to the caller; the resolver
// falls back to the database.
type FlaggingConfigCache interface {
	GetActiveConfigurations(ctx context.Context, parameterID string) ([]FlaggingConfiguration, bool)
	SetActiveConfigurations(ctx context.Context, parameterID string, configurations []FlaggingConfiguration)
	Invalidate(ctx context.Context, parameterID string)
}

type redisFlaggingConfigCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFlaggingConfigCache(client *redis.Client, ttl time.Duration) FlaggingConfigCache {
	return &redisFlaggingConfigCache{
		client: client,
		ttl:    ttl,
	}
}

func flaggingConfigCacheKey(parameterID string) string {
	return fmt.Sprintf("labflow:flagging:active:%s", parameterID)
}

func (c *redisFlaggingConfigCache) GetActiveConfigurations(ctx context.Context, parameterID string) ([]FlaggingConfiguration, bool) {
	payload, err := c.client.Get(ctx, flaggingConfigCacheKey(parameterID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("parameterID", parameterID).Msg("Can not read flagging configuration cache")
		}
		return nil, false
	}
	var configurations []FlaggingConfiguration
	if err = json.Unmarshal(payload, &configurations); err != nil {
		log.Warn().Err(err).Str("parameterID", parameterID).Msg("Invalid flagging configuration cache entry")
		return nil, false
	}
	return configurations, true
}

func (c *redisFlaggingConfigCache) SetActiveConfigurations(ctx context.Context, parameterID string, configurations []FlaggingConfiguration) {
	payload, err := json.Marshal(configurations)
	if err != nil {
		log.Warn().Err(err).Str("parameterID", parameterID).Msg("Can not marshal flagging configurations for cache")
		return
	}
	if err = c.client.Set(ctx, flaggingConfigCacheKey(parameterID), payload, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("parameterID", parameterID).Msg("Can not write flagging configuration cache")
	}
}

func (c *redisFlaggingConfigCache) Invalidate(ctx context.Context, parameterID string) {
	if err := c.client.Del(ctx, flaggingConfigCacheKey(parameterID)).Err(); err != nil {
		log.Warn().Err(err).Str("parameterID", parameterID).Msg("Can not invalidate flagging configuration cache")
	}
}

// noopFlaggingConfigCache is used when no Redis instance is configured.
type noopFlaggingConfigCache struct{}

func NewNoopFlaggingConfigCache() FlaggingConfigCache {
	return &noopFlaggingConfigCache{}
}

func (c *noopFlaggingConfigCache) GetActiveConfigurations(_ context.Context, _ string) ([]FlaggingConfiguration, bool) {
	return nil, false
}

func (c *noopFlaggingConfigCache) SetActiveConfigurations(_ context.Context, _ string, _ []FlaggingConfiguration) {
}

func (c *noopFlaggingConfigCache) Invalidate(_ context.Context, _ string) {
}
