package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	maxWaitSeconds     = 20
	maxBatchSize       = 10
	deleteTimeout      = 5 * time.Second
)

// Worker consumes send jobs from the queue and hands them to the dispatcher.
// The queue delivers at least once; a job is deleted only after Process
// returns nil, so failed sends are redelivered with the queue's own backoff.
type Worker struct {
	dispatcher *Dispatcher
	queue      queueClient
	logger     *logging.Logger

	workers   int
	waitSecs  int
	batchSize int
	wg        sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		w.waitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size <= 0 {
			return
		}
		if size > maxBatchSize {
			size = maxBatchSize
		}
		w.batchSize = size
	}
}

// NewWorker creates a queue consumer around the dispatcher.
func NewWorker(dispatcher *Dispatcher, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if dispatcher == nil {
		panic("notification: dispatcher required")
	}
	if queue == nil {
		panic("notification: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		workers:    defaultWorkerCount,
		waitSecs:   defaultWaitSeconds,
		batchSize:  defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive notification jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var job Job
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode notification job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := w.dispatcher.Process(ctx, job); err != nil {
		// Leave the message on the queue; redelivery retries the send.
		w.logger.Error("notification job failed", "error", err, "job_id", job.ID, "kind", job.Kind)
		return
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification job", "error", err)
	}
}
