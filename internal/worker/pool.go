package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// Executor runs one pipeline type. Executors own the task state machine;
// the pool only records a FAILED state when an executor returns an error it
// did not absorb itself.
type Executor interface {
	Execute(ctx context.Context, taskID string, payload []byte) error
}

// Pool manages a set of workers that process queued pipeline tasks.
// Each task runs as an independent unit: no worker blocks on another
// pipeline's completion, and dispatched tasks run to completion or failure
// with no preemption.
type Pool struct {
	queueMgr     interfaces.QueueManager
	taskStorage  interfaces.TaskStorage
	executors    map[string]Executor
	logger       arbor.ILogger
	numWorkers   int
	pollInterval time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewPool(queueMgr interfaces.QueueManager, taskStorage interfaces.TaskStorage, logger arbor.ILogger, numWorkers int, pollInterval time.Duration) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}

	return &Pool{
		queueMgr:     queueMgr,
		taskStorage:  taskStorage,
		executors:    make(map[string]Executor),
		logger:       logger,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterExecutor registers an executor for a task type
func (p *Pool) RegisterExecutor(taskType string, executor Executor) {
	p.executors[taskType] = executor
	p.logger.Info().
		Str("task_type", taskType).
		Msg("Executor registered")
}

// Start starts the worker pool
func (p *Pool) Start() {
	p.logger.Info().
		Int("num_workers", p.numWorkers).
		Msg("Starting worker pool")

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops the worker pool gracefully
func (p *Pool) Stop() {
	p.logger.Info().Msg("Stopping worker pool...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

// worker is the main worker loop
func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	p.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping")
			return
		default:
			if !p.processNextTask(workerID) {
				// Queue empty, back off before polling again
				select {
				case <-p.ctx.Done():
				case <-time.After(p.pollInterval):
				}
			}
		}
	}
}

// processNextTask processes the next message from the queue. Returns false
// when no message was available.
func (p *Pool) processNextTask(workerID int) bool {
	msg, deleteFn, err := p.queueMgr.Receive(p.ctx)
	if err != nil {
		if !errors.Is(err, models.ErrNoMessage) && p.ctx.Err() == nil {
			p.logger.Error().Err(err).Msg("Failed to receive from queue")
		}
		return false
	}

	p.logger.Info().
		Int("worker_id", workerID).
		Str("task_id", msg.TaskID).
		Str("task_type", msg.Type).
		Msg("Processing task")

	executor, ok := p.executors[msg.Type]
	if !ok {
		errMsg := fmt.Sprintf("no executor registered for task type: %s", msg.Type)
		p.logger.Error().
			Str("task_type", msg.Type).
			Str("task_id", msg.TaskID).
			Msg(errMsg)

		if err := p.taskStorage.SetTaskError(msg.TaskID, errMsg); err != nil {
			p.logger.Warn().Err(err).Str("task_id", msg.TaskID).Msg("Failed to record task error")
		}
		if err := deleteFn(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to delete message")
		}
		return true
	}

	if err := executor.Execute(p.ctx, msg.TaskID, msg.Payload); err != nil {
		p.logger.Error().
			Err(err).
			Str("task_id", msg.TaskID).
			Msg("Task failed")

		if serr := p.taskStorage.SetTaskError(msg.TaskID, err.Error()); serr != nil {
			p.logger.Warn().Err(serr).Str("task_id", msg.TaskID).Msg("Failed to record task error")
		}
	} else {
		p.logger.Info().
			Str("task_id", msg.TaskID).
			Msg("Task completed")
	}

	// Remove the message regardless of outcome; a failed pipeline is
	// recorded on the task, not retried by redelivery.
	if err := deleteFn(); err != nil {
		p.logger.Error().
			Err(err).
			Str("task_id", msg.TaskID).
			Msg("Failed to delete message from queue")
	}

	return true
}
