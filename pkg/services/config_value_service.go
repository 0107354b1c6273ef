package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shelfmark/shelfmark-engine/pkg/repositories"
)

const configValueCacheTTL = 5 * time.Minute

// ConfigValueService serves the configuration values exposed to sandbox
// scripts through host callbacks, with an optional Redis read-through cache
// in front of the store.
type ConfigValueService interface {
	GetAppValue(ctx context.Context, key string) (json.RawMessage, bool, error)
	GetUserValue(ctx context.Context, userID, key string) (json.RawMessage, bool, error)
}

type configValueService struct {
	repo   repositories.ConfigValueRepository
	cache  *redis.Client
	logger *zap.Logger
}

// NewConfigValueService creates a new ConfigValueService. Pass a nil cache
// client to read straight from the store.
func NewConfigValueService(repo repositories.ConfigValueRepository, cache *redis.Client, logger *zap.Logger) ConfigValueService {
	return &configValueService{
		repo:   repo,
		cache:  cache,
		logger: logger.Named("config-values"),
	}
}

var _ ConfigValueService = (*configValueService)(nil)

func (s *configValueService) GetAppValue(ctx context.Context, key string) (json.RawMessage, bool, error) {
	cacheKey := fmt.Sprintf("config:app:%s", key)
	if value, ok := s.cacheGet(ctx, cacheKey); ok {
		return value, true, nil
	}

	value, found, err := s.repo.GetAppValue(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		s.cacheSet(ctx, cacheKey, value)
	}

	return value, found, nil
}

func (s *configValueService) GetUserValue(ctx context.Context, userID, key string) (json.RawMessage, bool, error) {
	cacheKey := fmt.Sprintf("config:user:%s:%s", userID, key)
	if value, ok := s.cacheGet(ctx, cacheKey); ok {
		return value, true, nil
	}

	value, found, err := s.repo.GetUserValue(ctx, userID, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		s.cacheSet(ctx, cacheKey, value)
	}

	return value, found, nil
}

func (s *configValueService) cacheGet(ctx context.Context, key string) (json.RawMessage, bool) {
	if s.cache == nil {
		return nil, false
	}

	value, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("Config value cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	return json.RawMessage(value), true
}

func (s *configValueService) cacheSet(ctx context.Context, key string, value json.RawMessage) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Set(ctx, key, []byte(value), configValueCacheTTL).Err(); err != nil {
		s.logger.Debug("Config value cache write failed", zap.String("key", key), zap.Error(err))
	}
}
