package domain

import "context"

// MailWorker queues notification mails and sends them in the background.
// Its Mailer methods only enqueue and return ErrQueueFull when the queue is full.
type MailWorker interface {
	Mailer

	// Start drains the queue until ctx is done
	Start(ctx context.Context)
}
