package badger

import (
	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	story   interfaces.StoryStorage
	segment interfaces.SegmentStorage
	edge    interfaces.EdgeStorage
	task    interfaces.TaskStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := NewManagerWithDB(db, logger)

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// NewManagerWithDB wires a manager over an existing connection. Used by
// tests that manage their own temp database.
func NewManagerWithDB(db *BadgerDB, logger arbor.ILogger) *Manager {
	edge := NewEdgeStorage(db, logger)
	segment := NewSegmentStorage(db, edge, logger)

	return &Manager{
		db:      db,
		story:   NewStoryStorage(db, segment, edge, logger),
		segment: segment,
		edge:    edge,
		task:    NewTaskStorage(db, logger),
		logger:  logger,
	}
}

// StoryStorage returns the Story storage interface
func (m *Manager) StoryStorage() interfaces.StoryStorage {
	return m.story
}

// SegmentStorage returns the Segment storage interface
func (m *Manager) SegmentStorage() interfaces.SegmentStorage {
	return m.segment
}

// EdgeStorage returns the Edge storage interface
func (m *Manager) EdgeStorage() interfaces.EdgeStorage {
	return m.edge
}

// TaskStorage returns the Task storage interface
func (m *Manager) TaskStorage() interfaces.TaskStorage {
	return m.task
}

// Badger returns the raw badger database for the queue
func (m *Manager) Badger() *badgerdb.DB {
	if m.db != nil {
		return m.db.Store().Badger()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
