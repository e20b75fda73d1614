package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/faces-api/internal/logging"
	"github.com/example/faces-api/internal/repository"
	"github.com/example/faces-api/internal/validation"
)

// PhotoFinder runs bounding-box lookups against the metadata store.
type PhotoFinder interface {
	FindInBox(ctx context.Context, box validation.BoundingBox) ([]*repository.PhotoRecord, error)
}

// QueryUseCase answers bounding-box queries, optionally through a Redis cache.
// Cache failures never fail a query; they only cost a store round trip.
// Entries are keyed by the current box generation, which SubmissionUseCase
// bumps after every insert, so a cached result never hides a stored photo.
type QueryUseCase struct {
	finder   PhotoFinder
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	retry    logging.Retrier
}

// NewQueryUseCase constructs a query use case. A nil cache or a zero ttl
// disables caching.
func NewQueryUseCase(finder PhotoFinder, cache Cache, cacheTTL time.Duration, logger *zap.Logger) *QueryUseCase {
	named := logger.Named("query_usecase")
	return &QueryUseCase{
		finder:   finder,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   named,
		retry:    logging.NewRetrier(named),
	}
}

// FindInBox returns all records inside box. The result is never nil.
func (uc *QueryUseCase) FindInBox(ctx context.Context, box validation.BoundingBox) ([]*repository.PhotoRecord, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.find_in_box", "")

	var cacheKey string
	if uc.cachingEnabled() {
		generation, err := uc.generation(ctx)
		if err != nil {
			// Without the generation a hit could be stale, so skip the cache.
			queryCacheTotal.WithLabelValues("error").Inc()
			opLogger.Warn("failed to read query cache generation", zap.Error(err))
		} else {
			cacheKey = boxCacheKey(generation, box)
		}
	}

	if cacheKey != "" {
		cached, err := uc.withRedisGet(ctx, "cache.get.box", cacheKey)
		switch {
		case err == nil:
			var records []*repository.PhotoRecord
			if err := json.Unmarshal([]byte(cached), &records); err == nil && records != nil {
				queryCacheTotal.WithLabelValues("hit").Inc()
				return records, nil
			}
			opLogger.Warn("failed to decode cached query result", zap.String("key", cacheKey))
		case errors.Is(err, redis.Nil):
			queryCacheTotal.WithLabelValues("miss").Inc()
		default:
			queryCacheTotal.WithLabelValues("error").Inc()
			opLogger.Warn("failed to read query cache", zap.Error(err))
		}
	}

	records, err := uc.finder.FindInBox(ctx, box)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.find_in_box", "", err)
		opLogger.Error("bounding box query failed", zap.Error(wrapped))
		return nil, wrapped
	}
	if records == nil {
		records = make([]*repository.PhotoRecord, 0)
	}

	if cacheKey != "" {
		serialized, err := json.Marshal(records)
		if err != nil {
			opLogger.Warn("failed to serialize query result", zap.Error(err))
			return records, nil
		}
		if err := uc.retry.Do(ctx, "cache.set.box", "", func() error {
			return uc.cache.Set(ctx, cacheKey, string(serialized), uc.cacheTTL)
		}); err != nil {
			opLogger.Warn("failed to cache query result", zap.Error(err))
		}
	}

	return records, nil
}

func (uc *QueryUseCase) cachingEnabled() bool {
	return uc.cache != nil && uc.cacheTTL > 0
}

// generation returns "0" until the first insert bumps the counter.
func (uc *QueryUseCase) generation(ctx context.Context) (string, error) {
	value, err := uc.withRedisGet(ctx, "cache.get.box_generation", boxGenerationKey)
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return value, err
}

func (uc *QueryUseCase) withRedisGet(ctx context.Context, operation, cacheKey string) (string, error) {
	var result string
	err := uc.retry.Do(ctx, operation, "", func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
