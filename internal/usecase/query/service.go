package query

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/avatar"
)

const (
	DefaultRecentCount = 5
	MinRecentCount     = 1
	MaxRecentCount     = 100
)

type service struct {
	comments domain.CommentQuery
	avatars  domain.AvatarResolver
}

var _ domain.CommentQueryUsecase = (*service)(nil)

func NewService(comments domain.CommentQuery, avatars domain.AvatarResolver) *service {
	return &service{
		comments: comments,
		avatars:  avatars,
	}
}

func (s *service) ByPage(ctx context.Context, page string) ([]domain.CommentView, error) {
	rows, err := s.comments.FetchByPage(ctx, domain.CanonicalPage(page))
	if err != nil {
		return nil, err
	}
	return s.enrich(rows), nil
}

func (s *service) ByUser(ctx context.Context, userID int64) ([]domain.CommentView, error) {
	rows, err := s.comments.FetchByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.enrich(rows), nil
}

// Recent returns the newest comments, at most 100. A non-positive count means 5.
func (s *service) Recent(ctx context.Context, count int) ([]domain.CommentView, error) {
	if count < MinRecentCount {
		count = DefaultRecentCount
	}
	count = min(count, MaxRecentCount)
	rows, err := s.comments.FetchRecent(ctx, count)
	if err != nil {
		return nil, err
	}
	if len(rows) > count {
		rows = rows[:count]
	}
	return s.enrich(rows), nil
}

// ClampRecentCount turns the raw count parameter into a row limit.
// Anything that is not a positive integer means the default of 5.
func ClampRecentCount(raw string) int {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		// too many digits for int64, still a positive integer
		return MaxRecentCount
	}
	if err != nil || n < MinRecentCount {
		return DefaultRecentCount
	}
	return int(min(n, MaxRecentCount))
}

func (s *service) enrich(rows []domain.CommentRow) []domain.CommentView {
	res := make([]domain.CommentView, 0, len(rows))
	for i := range rows {
		res = append(res, s.view(&rows[i]))
	}
	return res
}

func (s *service) view(row *domain.CommentRow) domain.CommentView {
	return domain.CommentView{
		Comment:    row.Comment,
		Username:   row.Username,
		UserHandle: row.UserHandle,
		Picture:    avatar.PicturePath(s.avatars, row.UserHandle, row.Picture),
		Badges:     row.Data.Badges(),
		Social:     row.Data.Social(),
		Patron:     row.Data.Patron(),
	}
}
