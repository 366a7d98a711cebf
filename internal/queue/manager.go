package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = models.ErrNoMessage

// queueEntry wraps a message with delivery bookkeeping as stored in Badger.
type queueEntry struct {
	ID           string              `json:"id"`
	Body         models.QueueMessage `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// Manager implements a persistent queue on BadgerDB. Messages are stored
// under queue:{name}:msg:{id} with a visibility index at
// queue:{name}:index:{visibleAt}:{id}; receiving a message moves its index
// entry forward by the visibility timeout so a crashed worker's message is
// redelivered.
type Manager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
}

// NewManager creates a new Badger-backed queue manager
func NewManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (interfaces.QueueManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// Enqueue adds a message to the queue
func (m *Manager) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	id := uuid.New().String()

	entry := queueEntry{
		ID:         id,
		Body:       msg,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(), // Immediately visible
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(id), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(entry.VisibleAt, id), []byte{})
	})
}

// Receive pulls the next visible message from the queue. The returned
// function deletes the message; not calling it leaves the message to be
// redelivered after the visibility timeout.
func (m *Manager) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var entry queueEntry
	var msgID string

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false
		var oldIndexKey []byte

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue // Skip invalid keys
			}

			// Index keys sort by timestamp; a future entry means nothing
			// after it is ready either.
			if ts.After(now) {
				break
			}

			itemMsg, err := txn.Get(m.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Dangling index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := itemMsg.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}

			// Drop poison messages that exceeded max receive count
			if entry.ReceiveCount >= m.maxReceive {
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(m.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return ErrNoMessage
		}

		entry.ReceiveCount++
		entry.VisibleAt = time.Now().Add(m.visibilityTimeout)

		newData, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(m.indexKey(entry.VisibleAt, msgID), []byte{})
	})

	if err != nil {
		return nil, nil, err
	}

	deleteFn := func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(m.msgKey(msgID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return nil // Already deleted
				}
				return err
			}

			var current queueEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			if err := txn.Delete(m.indexKey(current.VisibleAt, msgID)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(m.msgKey(msgID))
		})
	}

	return &entry.Body, deleteFn, nil
}

// Len returns the number of messages currently in the queue
func (m *Manager) Len() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Helpers

func (m *Manager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *Manager) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so string sorting matches numeric sorting
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *Manager) parseIndexKey(key []byte) (time.Time, string, error) {
	parts := strings.SplitN(string(key), ":", 5)
	if len(parts) != 5 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}

	nanos, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index timestamp: %w", err)
	}

	return time.Unix(0, nanos), parts[4], nil
}
