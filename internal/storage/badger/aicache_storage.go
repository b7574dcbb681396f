package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// aiCacheRecord wraps a cache entry with its expiry. Expiry is checked at
// read time; expired rows are deleted lazily.
type aiCacheRecord struct {
	Entry     *models.AICacheEntry `json:"entry"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// AICacheStorage is the content-addressed inference cache on Badger.
type AICacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAICacheStorage creates a new AI cache storage service
func NewAICacheStorage(db *BadgerDB, logger arbor.ILogger) *AICacheStorage {
	return &AICacheStorage{db: db, logger: logger}
}

// Get returns the cached entry or ErrCacheMiss. Expired entries are
// removed and reported as a miss.
func (s *AICacheStorage) Get(ctx context.Context, key string) (*models.AICacheEntry, error) {
	var record aiCacheRecord
	if err := s.db.Store().Get(key, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read AI cache key %s: %w", key, err)
	}
	if time.Now().After(record.ExpiresAt) {
		if err := s.db.Store().Delete(key, &aiCacheRecord{}); err != nil && err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete expired AI cache entry")
		}
		return nil, interfaces.ErrCacheMiss
	}
	return record.Entry, nil
}

// Put stores an entry with the given TTL. Concurrent writers to the same
// key store identical content, so last-writer-wins is safe.
func (s *AICacheStorage) Put(ctx context.Context, entry *models.AICacheEntry, ttl time.Duration) error {
	record := aiCacheRecord{
		Entry:     entry,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.Store().Upsert(entry.Key, &record); err != nil {
		return fmt.Errorf("failed to store AI cache key %s: %w", entry.Key, err)
	}
	return nil
}

var _ interfaces.AICacheStorage = (*AICacheStorage)(nil)
