package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

// cacheRecord is a TTL-carrying blob row. Expiry is checked on read.
type cacheRecord struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResultCacheStorage is a short-TTL blob cache on Badger for published
// snapshots.
type ResultCacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultCacheStorage creates a new result cache storage service
func NewResultCacheStorage(db *BadgerDB, logger arbor.ILogger) *ResultCacheStorage {
	return &ResultCacheStorage{db: db, logger: logger}
}

// Get returns the cached blob or ErrCacheMiss.
func (s *ResultCacheStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var record cacheRecord
	if err := s.db.Store().Get(key, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if time.Now().After(record.ExpiresAt) {
		if err := s.db.Store().Delete(key, &cacheRecord{}); err != nil && err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete expired cache entry")
		}
		return nil, interfaces.ErrCacheMiss
	}
	return record.Value, nil
}

// Set stores a blob with the given TTL, replacing any prior value.
func (s *ResultCacheStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	record := cacheRecord{
		Key:       key,
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.Store().Upsert(key, &record); err != nil {
		return fmt.Errorf("failed to store cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes a cached blob.
func (s *ResultCacheStorage) Delete(ctx context.Context, key string) error {
	if err := s.db.Store().Delete(key, &cacheRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

var _ interfaces.ResultCacheStorage = (*ResultCacheStorage)(nil)
