package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// DiscoveryStorage implements discovery persistence on Badger. Pages are
// keyed by (discoveryID, canonical URL) so duplicate inserts surface as
// key conflicts rather than racing reads.
type DiscoveryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDiscoveryStorage creates a new discovery storage service
func NewDiscoveryStorage(db *BadgerDB, logger arbor.ILogger) *DiscoveryStorage {
	return &DiscoveryStorage{db: db, logger: logger}
}

func pageKey(discoveryID, canonicalURL string) string {
	return discoveryID + "|" + canonicalURL
}

// SaveDiscovery inserts or updates a discovery row.
func (s *DiscoveryStorage) SaveDiscovery(ctx context.Context, d *models.Discovery) error {
	if err := s.db.Store().Upsert(d.ID, d); err != nil {
		return fmt.Errorf("failed to save discovery %s: %w", d.ID, err)
	}
	return nil
}

// GetDiscovery loads a discovery by id.
func (s *DiscoveryStorage) GetDiscovery(ctx context.Context, id string) (*models.Discovery, error) {
	var d models.Discovery
	if err := s.db.Store().Get(id, &d); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrDiscoveryNotFound
		}
		return nil, fmt.Errorf("failed to get discovery %s: %w", id, err)
	}
	return &d, nil
}

// DeleteDiscovery removes a discovery and all its pages.
func (s *DiscoveryStorage) DeleteDiscovery(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Discovery{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete discovery %s: %w", id, err)
	}
	if err := s.db.Store().DeleteMatching(&models.DiscoveredPage{}, badgerhold.Where("DiscoveryID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete pages for discovery %s: %w", id, err)
	}
	return nil
}

// AddPage inserts a page; ErrPageAlreadyExists when the canonical URL is
// already recorded for the discovery.
func (s *DiscoveryStorage) AddPage(ctx context.Context, page *models.DiscoveredPage) error {
	err := s.db.Store().Insert(pageKey(page.DiscoveryID, page.URL), page)
	if err != nil {
		if err == badgerhold.ErrKeyExists {
			return interfaces.ErrPageAlreadyExists
		}
		return fmt.Errorf("failed to add page %s: %w", page.URL, err)
	}
	return nil
}

// RemovePage deletes a single page by its id.
func (s *DiscoveryStorage) RemovePage(ctx context.Context, discoveryID, pageID string) error {
	var pages []models.DiscoveredPage
	err := s.db.Store().Find(&pages, badgerhold.Where("DiscoveryID").Eq(discoveryID).And("ID").Eq(pageID))
	if err != nil {
		return fmt.Errorf("failed to find page %s: %w", pageID, err)
	}
	if len(pages) == 0 {
		return interfaces.ErrDiscoveryNotFound
	}
	if err := s.db.Store().Delete(pageKey(discoveryID, pages[0].URL), &models.DiscoveredPage{}); err != nil {
		return fmt.Errorf("failed to remove page %s: %w", pageID, err)
	}
	return nil
}

// ListPages returns the discovery's pages ordered by creation time.
func (s *DiscoveryStorage) ListPages(ctx context.Context, discoveryID string) ([]*models.DiscoveredPage, error) {
	var pages []models.DiscoveredPage
	if err := s.db.Store().Find(&pages, badgerhold.Where("DiscoveryID").Eq(discoveryID)); err != nil {
		return nil, fmt.Errorf("failed to list pages for discovery %s: %w", discoveryID, err)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].CreatedAt.Before(pages[j].CreatedAt)
	})
	out := make([]*models.DiscoveredPage, len(pages))
	for i := range pages {
		out[i] = &pages[i]
	}
	return out, nil
}

// CountPages returns the number of pages recorded for a discovery.
func (s *DiscoveryStorage) CountPages(ctx context.Context, discoveryID string) (int, error) {
	count, err := s.db.Store().Count(&models.DiscoveredPage{}, badgerhold.Where("DiscoveryID").Eq(discoveryID))
	if err != nil {
		return 0, fmt.Errorf("failed to count pages for discovery %s: %w", discoveryID, err)
	}
	return int(count), nil
}

var _ interfaces.DiscoveryStorage = (*DiscoveryStorage)(nil)
