package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// queueClient is the transport under the job queue. SQS in production, an
// in-memory channel in development and tests. Delivery is at-least-once;
// dedup lives in the ledger, not here.
type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Publisher enqueues send jobs. Enqueueing is fire-and-forget from the
// caller's perspective: delivery and ledger writes happen in the dispatcher.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a job publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notification: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue publishes one send job, assigning a correlation id when missing.
func (p *Publisher) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("notification: encode job: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("notification: enqueue %s job: %w", job.Kind, err)
	}
	p.logger.Debug("notification job enqueued",
		"job_id", job.ID,
		"kind", job.Kind,
		"appointment_id", job.AppointmentID,
	)
	return nil
}
