package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/metrics"
)

// Decision is the fan-out for one new comment
type Decision struct {
	// Reply is set when the parent's author must hear about the reply
	Reply bool
	// ProfileHandle is the owner of the profile page commented on, "" when nobody
	ProfileHandle string
}

// Decide picks the recipients of a new comment. parent is nil for top level comments.
// The profile check compares against the posting author's own handle.
func Decide(author domain.User, comment domain.Comment, parent *domain.Comment) Decision {
	var d Decision
	if parent != nil && parent.UserID != author.ID {
		d.Reply = true
	}
	if handle, ok := domain.ProfileHandle(comment.Page); ok && handle != author.Handle {
		d.ProfileHandle = handle
	}
	return d
}

type service struct {
	users   domain.UserRepository
	mailer  domain.Mailer
	metrics *metrics.Metrics
}

var _ domain.NotifyUsecase = (*service)(nil)

func NewService(users domain.UserRepository, mailer domain.Mailer, m *metrics.Metrics) *service {
	return &service{
		users:   users,
		mailer:  mailer,
		metrics: m,
	}
}

// Notify never fails: recipients that cannot be resolved or mailed are logged and skipped.
func (s *service) Notify(ctx context.Context, author domain.User, comment domain.Comment, parent *domain.Comment) domain.NotifyResult {
	d := Decide(author, comment, parent)

	var (
		g      errgroup.Group
		result domain.NotifyResult
	)
	if parent != nil {
		g.Go(func() error {
			result.ReplyNotified = s.reply(ctx, d, author, comment, *parent)
			return nil
		})
	}
	if d.ProfileHandle != "" {
		g.Go(func() error {
			if s.profile(ctx, author, comment, d.ProfileHandle) {
				result.ProfileHandle = d.ProfileHandle
			}
			return nil
		})
	} else if _, ok := domain.ProfileHandle(comment.Page); ok {
		s.metrics.Notification(string(domain.NotifyProfileComment), metrics.ResultSuppressed)
	}
	_ = g.Wait()

	return result
}

func (s *service) NotifyReply(ctx context.Context, author domain.User, comment domain.Comment, parent domain.Comment) bool {
	return s.reply(ctx, Decide(author, comment, &parent), author, comment, parent)
}

func (s *service) reply(ctx context.Context, d Decision, author domain.User, comment, parent domain.Comment) bool {
	kind := string(domain.NotifyReply)
	if !d.Reply {
		s.metrics.Notification(kind, metrics.ResultSuppressed)
		return false
	}

	parentAuthor, err := s.users.GetByID(ctx, parent.UserID)
	if err != nil {
		s.fail(kind, comment, err)
		return false
	}
	if err := s.mailer.NotifyReply(ctx, author, comment, parentAuthor, parent); err != nil {
		s.fail(kind, comment, err)
		return false
	}
	s.metrics.Notification(kind, metrics.ResultSent)
	return true
}

func (s *service) profile(ctx context.Context, author domain.User, comment domain.Comment, handle string) bool {
	kind := string(domain.NotifyProfileComment)

	owner, err := s.users.GetByHandle(ctx, handle)
	if err != nil {
		s.fail(kind, comment, err)
		return false
	}
	if err := s.mailer.NotifyProfileComment(ctx, author, comment, owner); err != nil {
		s.fail(kind, comment, err)
		return false
	}
	s.metrics.Notification(kind, metrics.ResultSent)
	return true
}

func (s *service) fail(kind string, comment domain.Comment, err error) {
	s.metrics.Notification(kind, metrics.ResultFailed)
	if errors.Is(err, domain.ErrNotFound) {
		logrus.Warnf("no recipient for %s notification of comment %d", kind, comment.ID)
		return
	}
	logrus.Errorf("%s notification for comment %d failed: %v", kind, comment.ID, err)
}
