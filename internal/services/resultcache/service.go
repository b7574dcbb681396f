package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Service caches published discovery snapshots. Cache failures are logged
// and absorbed; they never fail the enclosing operation.
type Service struct {
	cache  interfaces.ResultCacheStorage
	logger arbor.ILogger
	ttl    time.Duration
}

// NewService creates a result cache service with the given snapshot TTL.
func NewService(cache interfaces.ResultCacheStorage, logger arbor.ILogger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
}

func snapshotKey(discoveryID string) string {
	return fmt.Sprintf("discovery:%s:result", discoveryID)
}

// PublishSnapshot writes the snapshot under the discovery's key with the
// configured TTL.
func (s *Service) PublishSnapshot(ctx context.Context, snapshot *models.DiscoverySnapshot) {
	if snapshot == nil || snapshot.Discovery == nil {
		return
	}
	snapshot.CachedAt = time.Now().UTC()

	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Warn().Err(err).Str("discovery_id", snapshot.Discovery.ID).Msg("Failed to marshal discovery snapshot")
		return
	}
	if err := s.cache.Set(ctx, snapshotKey(snapshot.Discovery.ID), data, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("discovery_id", snapshot.Discovery.ID).Msg("Failed to cache discovery snapshot")
	}
}

// GetSnapshot returns the cached snapshot, or ErrCacheMiss. A cached value
// that fails the integrity check (unmarshalable, missing discovery, or id
// mismatch) is deleted and treated as a miss.
func (s *Service) GetSnapshot(ctx context.Context, discoveryID string) (*models.DiscoverySnapshot, error) {
	key := snapshotKey(discoveryID)

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, interfaces.ErrCacheMiss
	}

	var snapshot models.DiscoverySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.evictCorrupt(ctx, key, discoveryID, "unmarshal failure")
		return nil, interfaces.ErrCacheMiss
	}
	if snapshot.Discovery == nil || snapshot.Discovery.ID != discoveryID || snapshot.CachedAt.IsZero() {
		s.evictCorrupt(ctx, key, discoveryID, "integrity check failed")
		return nil, interfaces.ErrCacheMiss
	}

	return &snapshot, nil
}

// Invalidate removes a discovery's cached snapshot.
func (s *Service) Invalidate(ctx context.Context, discoveryID string) {
	if err := s.cache.Delete(ctx, snapshotKey(discoveryID)); err != nil {
		s.logger.Warn().Err(err).Str("discovery_id", discoveryID).Msg("Failed to invalidate snapshot cache")
	}
}

func (s *Service) evictCorrupt(ctx context.Context, key, discoveryID, reason string) {
	s.logger.Warn().
		Str("discovery_id", discoveryID).
		Str("reason", reason).
		Msg("Corrupt snapshot evicted from cache")
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete corrupt snapshot")
	}
}
