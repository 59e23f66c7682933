package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/go-comment-engine/domain"
)

const (
	DefaultMailQueueSize = 256
	// drainTimeout bounds the flush of queued mails on shutdown
	drainTimeout = 10 * time.Second
)

type MailTask struct {
	Kind    domain.NotificationKind
	Author  domain.User
	Comment domain.Comment
	// Recipient is the parent's author for replies and the profile owner otherwise
	Recipient domain.User
	Parent    domain.Comment
}

type mailDispatchWorker struct {
	mailer domain.Mailer
	ch     chan MailTask
}

var _ domain.MailWorker = (*mailDispatchWorker)(nil)

// NewMailDispatchWorker queues notifications for mailer. size <= 0 uses DefaultMailQueueSize.
func NewMailDispatchWorker(mailer domain.Mailer, size int) *mailDispatchWorker {
	if size <= 0 {
		size = DefaultMailQueueSize
	}
	return &mailDispatchWorker{
		mailer: mailer,
		ch:     make(chan MailTask, size),
	}
}

func (w *mailDispatchWorker) NotifyReply(_ context.Context, author domain.User, comment domain.Comment, parentAuthor domain.User, parentComment domain.Comment) error {
	return w.enqueue(MailTask{
		Kind:      domain.NotifyReply,
		Author:    author,
		Comment:   comment,
		Recipient: parentAuthor,
		Parent:    parentComment,
	})
}

func (w *mailDispatchWorker) NotifyProfileComment(_ context.Context, author domain.User, comment domain.Comment, profileOwner domain.User) error {
	return w.enqueue(MailTask{
		Kind:      domain.NotifyProfileComment,
		Author:    author,
		Comment:   comment,
		Recipient: profileOwner,
	})
}

func (w *mailDispatchWorker) enqueue(task MailTask) error {
	select {
	case w.ch <- task:
		return nil
	default:
		logrus.Warnf("mail queue is full, %s notification for comment %d dropped", task.Kind, task.Comment.ID)
		return domain.ErrQueueFull
	}
}

// Start sends queued mails until ctx is done, then flushes what is left and returns.
func (w *mailDispatchWorker) Start(ctx context.Context) {
	for {
		select {
		case task := <-w.ch:
			w.deliver(ctx, task)
		case <-ctx.Done():
			logrus.Info("shutting down mail dispatch worker, flushing remaining mails...")
			w.drain(ctx)
			return
		}
	}
}

func (w *mailDispatchWorker) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	for {
		select {
		case task := <-w.ch:
			w.deliver(ctx, task)
		default:
			return
		}
	}
}

func (w *mailDispatchWorker) deliver(ctx context.Context, task MailTask) {
	var err error
	switch task.Kind {
	case domain.NotifyReply:
		err = w.mailer.NotifyReply(ctx, task.Author, task.Comment, task.Recipient, task.Parent)
	case domain.NotifyProfileComment:
		err = w.mailer.NotifyProfileComment(ctx, task.Author, task.Comment, task.Recipient)
	default:
		logrus.Errorf("Unsupported notification kind: %v", task.Kind)
		return
	}
	if err != nil {
		logrus.Errorf("failed to deliver %s mail for comment %d to user %d: %v", task.Kind, task.Comment.ID, task.Recipient.ID, err)
	}
}
