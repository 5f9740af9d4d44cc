package cache

import (
	"context"
	"time"

	"bagatelle/backend/internal/domain"
)

type SuggestionCache interface {
	Get(ctx context.Context, key string) (*domain.RepurchaseFeed, bool, error)
	Set(ctx context.Context, key string, value *domain.RepurchaseFeed, ttl time.Duration) error
}

type NoopSuggestionCache struct{}

func (NoopSuggestionCache) Get(_ context.Context, _ string) (*domain.RepurchaseFeed, bool, error) {
	return nil, false, nil
}

func (NoopSuggestionCache) Set(_ context.Context, _ string, _ *domain.RepurchaseFeed, _ time.Duration) error {
	return nil
}
