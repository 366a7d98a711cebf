package interfaces

import (
	"context"

	"github.com/ternarybob/fabula/internal/models"
)

// QueueManager is the durable work queue feeding the worker pool. Messages
// become invisible while a worker holds them and are redelivered after the
// visibility timeout if the worker dies mid-task.
type QueueManager interface {
	// Enqueue adds a message to the queue.
	Enqueue(ctx context.Context, msg models.QueueMessage) error

	// Receive pulls the next visible message. The returned function deletes
	// the message once processing finishes. Returns ErrNoMessage when the
	// queue is empty.
	Receive(ctx context.Context) (*models.QueueMessage, func() error, error)

	// Len returns the number of messages currently in the queue.
	Len() (int, error)
}
