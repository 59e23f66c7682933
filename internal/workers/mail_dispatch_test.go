package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Guyuepp/go-comment-engine/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingMailer struct {
	mu    sync.Mutex
	kinds []domain.NotificationKind
	fail  bool
}

func (r *recordingMailer) record(kind domain.NotificationKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	if r.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (r *recordingMailer) NotifyReply(context.Context, domain.User, domain.Comment, domain.User, domain.Comment) error {
	return r.record(domain.NotifyReply)
}

func (r *recordingMailer) NotifyProfileComment(context.Context, domain.User, domain.Comment, domain.User) error {
	return r.record(domain.NotifyProfileComment)
}

func (r *recordingMailer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kinds)
}

func TestMailDispatch_DeliversInOrder(t *testing.T) {
	mailer := &recordingMailer{}
	w := NewMailDispatchWorker(mailer, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.NoError(t, w.NotifyReply(ctx, domain.User{ID: 2}, domain.Comment{ID: 11}, domain.User{ID: 1}, domain.Comment{ID: 10}))
	require.NoError(t, w.NotifyProfileComment(ctx, domain.User{ID: 2}, domain.Comment{ID: 12}, domain.User{ID: 3}))

	assert.Eventually(t, func() bool { return mailer.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []domain.NotificationKind{domain.NotifyReply, domain.NotifyProfileComment}, mailer.kinds)
}

func TestMailDispatch_QueueFull(t *testing.T) {
	w := NewMailDispatchWorker(&recordingMailer{}, 1)
	ctx := context.Background()

	require.NoError(t, w.NotifyProfileComment(ctx, domain.User{}, domain.Comment{ID: 1}, domain.User{}))
	err := w.NotifyProfileComment(ctx, domain.User{}, domain.Comment{ID: 2}, domain.User{})
	assert.ErrorIs(t, err, domain.ErrQueueFull)
}

func TestMailDispatch_FlushesOnShutdown(t *testing.T) {
	mailer := &recordingMailer{fail: true}
	w := NewMailDispatchWorker(mailer, 0)
	for i := range 3 {
		require.NoError(t, w.NotifyProfileComment(context.Background(), domain.User{}, domain.Comment{ID: int64(i)}, domain.User{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	// delivery errors are logged, queued mails are still attempted
	assert.Equal(t, 3, mailer.count())
}

func TestMailDispatch_DefaultSize(t *testing.T) {
	w := NewMailDispatchWorker(&recordingMailer{}, -1)
	assert.Equal(t, DefaultMailQueueSize, cap(w.ch))
}
