package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db          *BadgerDB
	discovery   interfaces.DiscoveryStorage
	scan        interfaces.ScanStorage
	batch       interfaces.BatchStorage
	usage       interfaces.UsageStorage
	checkpoint  interfaces.CheckpointStorage
	aiCache     interfaces.AICacheStorage
	resultCache interfaces.ResultCacheStorage
	job         interfaces.JobStorage
	logger      arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:          db,
		discovery:   NewDiscoveryStorage(db, logger),
		scan:        NewScanStorage(db, logger),
		batch:       NewBatchStorage(db, logger),
		usage:       NewUsageStorage(db, logger),
		checkpoint:  NewCheckpointStorage(db, logger),
		aiCache:     NewAICacheStorage(db, logger),
		resultCache: NewResultCacheStorage(db, logger),
		job:         NewQueueStorage(db, logger),
		logger:      logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// DiscoveryStorage returns the Discovery storage interface
func (m *Manager) DiscoveryStorage() interfaces.DiscoveryStorage {
	return m.discovery
}

// ScanStorage returns the Scan storage interface
func (m *Manager) ScanStorage() interfaces.ScanStorage {
	return m.scan
}

// BatchStorage returns the Batch storage interface
func (m *Manager) BatchStorage() interfaces.BatchStorage {
	return m.batch
}

// UsageStorage returns the Usage storage interface
func (m *Manager) UsageStorage() interfaces.UsageStorage {
	return m.usage
}

// CheckpointStorage returns the Checkpoint storage interface
func (m *Manager) CheckpointStorage() interfaces.CheckpointStorage {
	return m.checkpoint
}

// AICacheStorage returns the AI cache storage interface
func (m *Manager) AICacheStorage() interfaces.AICacheStorage {
	return m.aiCache
}

// ResultCacheStorage returns the result cache storage interface
func (m *Manager) ResultCacheStorage() interfaces.ResultCacheStorage {
	return m.resultCache
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

var _ interfaces.StorageManager = (*Manager)(nil)
