package comment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/metrics"
)

const (
	KindComment    = "comment"
	KindReply      = "reply"
	KindEmailReply = "email_reply"
)

// subjectToken finds the parent comment in the subject of a reply mail
var subjectToken = regexp.MustCompile(`\[comment#(\d+)\]`)

type service struct {
	comments domain.CommentRepository
	query    domain.CommentQueryUsecase
	users    domain.UserRepository
	notifier domain.NotifyUsecase
	metrics  *metrics.Metrics
	validate *validator.Validate
}

var _ domain.CommentUsecase = (*service)(nil)

func NewService(
	comments domain.CommentRepository,
	query domain.CommentQueryUsecase,
	users domain.UserRepository,
	notifier domain.NotifyUsecase,
	m *metrics.Metrics,
) *service {
	return &service{
		comments: comments,
		query:    query,
		users:    users,
		notifier: notifier,
		metrics:  m,
		validate: validator.New(),
	}
}

func (s *service) Post(ctx context.Context, callerID int64, page, body string, parentID *int64) (domain.PostResult, error) {
	page = domain.CanonicalPage(strings.TrimSpace(page))
	if page == "" || strings.TrimSpace(body) == "" {
		return domain.PostResult{}, fmt.Errorf("%w: page and comment are required", domain.ErrBadParamInput)
	}

	author, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return domain.PostResult{}, err
	}

	var parent *domain.Comment
	if parentID != nil {
		row, err := s.loadParent(ctx, *parentID)
		if err != nil {
			return domain.PostResult{}, err
		}
		parent = &row
	}

	badge, kind := domain.BadgeCommented, KindComment
	if parent != nil {
		badge, kind = domain.BadgeReplied, KindReply
	}
	// Create drops the cached listings, the author's badges must already be saved by then
	s.award(ctx, &author, badge)

	row, err := s.comments.Create(ctx, author.ID, page, body, parentID)
	if err != nil {
		return domain.PostResult{}, err
	}
	s.metrics.CommentCreated(kind)

	notified := s.notifier.Notify(ctx, author, row.Comment, parent)
	return domain.PostResult{
		ID:                    row.ID,
		NotifiedProfileHandle: notified.ProfileHandle,
	}, nil
}

// Remove lets the owner remove a comment. Anyone else gets ErrForbidden and the comment is untouched.
func (s *service) Remove(ctx context.Context, callerID int64, commentID int64) (domain.RemovalOutcome, error) {
	row, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return "", err
	}
	if row.UserID != callerID {
		logrus.WithFields(logrus.Fields{
			"actor":      callerID,
			"comment_id": commentID,
			"owner":      row.UserID,
		}).Info("refused to remove a comment of another user")
		s.metrics.Forbidden()
		return "", domain.ErrForbidden
	}

	outcome, err := s.comments.Remove(ctx, row.Comment)
	if err != nil {
		return "", err
	}
	s.metrics.CommentRemoved(string(outcome))
	return outcome, nil
}

// ReplyByEmail posts body as a reply to the comment named by the [comment#<id>] token in subject.
func (s *service) ReplyByEmail(ctx context.Context, senderEmail, subject, body string) (domain.PostResult, error) {
	senderEmail = strings.TrimSpace(senderEmail)
	if err := s.validate.Var(senderEmail, "required,email"); err != nil {
		return domain.PostResult{}, fmt.Errorf("%w: invalid sender address", domain.ErrBadParamInput)
	}
	if strings.TrimSpace(body) == "" {
		return domain.PostResult{}, fmt.Errorf("%w: empty reply", domain.ErrBadParamInput)
	}

	author, err := s.users.GetByEmail(ctx, senderEmail)
	if err != nil {
		return domain.PostResult{}, err
	}

	parentID, err := ParseSubjectToken(subject)
	if err != nil {
		return domain.PostResult{}, err
	}
	parent, err := s.loadParent(ctx, parentID)
	if err != nil {
		return domain.PostResult{}, err
	}

	row, err := s.comments.Create(ctx, author.ID, parent.Page, body, &parent.ID)
	if err != nil {
		return domain.PostResult{}, err
	}
	s.metrics.CommentCreated(KindEmailReply)

	s.notifier.NotifyReply(ctx, author, row.Comment, parent)
	return domain.PostResult{ID: row.ID}, nil
}

// ParseSubjectToken extracts the comment id of a "[comment#<id>]" token
func ParseSubjectToken(subject string) (int64, error) {
	m := subjectToken.FindStringSubmatch(subject)
	if m == nil {
		return 0, fmt.Errorf("%w: no comment reference in subject", domain.ErrBadParamInput)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad comment reference %q", domain.ErrBadParamInput, m[0])
	}
	return id, nil
}

func (s *service) ListPage(ctx context.Context, page string) ([]domain.CommentView, error) {
	return s.query.ByPage(ctx, page)
}

func (s *service) ListUser(ctx context.Context, userID int64) ([]domain.CommentView, error) {
	return s.query.ByUser(ctx, userID)
}

func (s *service) ListRecent(ctx context.Context, count int) ([]domain.CommentView, error) {
	return s.query.Recent(ctx, count)
}

func (s *service) loadParent(ctx context.Context, id int64) (domain.Comment, error) {
	row, err := s.comments.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Comment{}, domain.ErrParentNotFound
	}
	if err != nil {
		return domain.Comment{}, err
	}
	return row.Comment, nil
}

// award gives author a badge. Failures are logged and never stop the post.
func (s *service) award(ctx context.Context, author *domain.User, badge string) {
	if author.Data == nil {
		author.Data = domain.ProfileData{}
	}
	if err := author.Data.AddBadge(badge); err != nil {
		logrus.Errorf("failed to add badge %s to user %d: %v", badge, author.ID, err)
		return
	}
	if err := s.users.SaveData(ctx, author); err != nil {
		logrus.Errorf("failed to save badge %s of user %d: %v", badge, author.ID, err)
	}
}
