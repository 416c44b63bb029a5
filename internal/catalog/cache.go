package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/logging"
	"go.uber.org/zap"
)

const sequenceKeyPrefix = "catalog:sequence:"

// CachedCatalog keep ordered lecture sequences in a key-value store.
//
// Store failures are logged and the call falls through to the wrapped catalog.
type CachedCatalog struct {
	Catalog
	kv  driver.KeyValueDB
	ttl time.Duration
}

var _ Catalog = &CachedCatalog{}

func NewCachedCatalog(base Catalog, kv driver.KeyValueDB, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{base, kv, ttl}
}

func (cc *CachedCatalog) ListPublishedLecturesOrdered(ctx context.Context, courseID string) ([]*Lecture, error) {
	logger := logging.ExtractLoggerFromContext(ctx)
	key := sequenceKeyPrefix + courseID

	if raw, err := cc.kv.Get(key); err == nil {
		var lectures []*Lecture
		if err := json.Unmarshal([]byte(raw), &lectures); err == nil {
			return lectures, nil
		}
		logger.Warn("corrupted catalog cache entry", zap.String("cache.key", key))
	} else if err != driver.ErrKeyNotFound {
		logger.Warn("failed to read catalog cache", zap.String("cache.key", key), zap.Error(err))
	}

	lectures, err := cc.Catalog.ListPublishedLecturesOrdered(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(lectures); err == nil {
		if err := cc.kv.SetEX(key, string(raw), cc.ttl); err != nil {
			logger.Warn("failed to write catalog cache", zap.String("cache.key", key), zap.Error(err))
		}
	}
	return lectures, nil
}
