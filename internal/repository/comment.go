package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Guyuepp/go-comment-engine/domain"
)

const (
	KeyCommentsPage   = "comments:page:%s"
	KeyCommentsUser   = "comments:user:%d"
	KeyCommentsRecent = "comments:recent"

	// RecentCacheSize is how many recent comments are cached; smaller requests slice it
	RecentCacheSize = 100
)

// commentRepository 协调层，协调缓存和数据库
type commentRepository struct {
	db         domain.CommentRepository
	cache      domain.CommentCache
	ids        domain.IDFilter
	fetchGroup singleflight.Group

	// idsStale is set once an Add failed; the filter is bypassed from then on
	idsStale atomic.Bool
}

var _ domain.CommentRepository = (*commentRepository)(nil)

// NewCommentRepository wraps db with a listing cache. A nil cache disables caching.
func NewCommentRepository(db domain.CommentRepository, cache domain.CommentCache) *commentRepository {
	return &commentRepository{
		db:    db,
		cache: cache,
	}
}

// WithIDFilter lets GetByID answer ErrNotFound for ids the filter has never seen
func (r *commentRepository) WithIDFilter(ids domain.IDFilter) *commentRepository {
	r.ids = ids
	return r
}

func (r *commentRepository) Create(ctx context.Context, authorID int64, page, body string, parentID *int64) (domain.CommentRow, error) {
	row, err := r.db.Create(ctx, authorID, page, body, parentID)
	if err != nil {
		return row, err
	}
	if r.ids != nil {
		if err := r.ids.Add(ctx, row.ID); err != nil {
			r.idsStale.Store(true)
			logrus.Errorf("failed to add comment %d to the id filter, filter disabled: %v", row.ID, err)
		}
	}
	r.invalidate(ctx, row.Comment)
	return row, nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (domain.CommentRow, error) {
	if r.ids != nil && !r.idsStale.Load() {
		exists, err := r.ids.Exists(ctx, id)
		if err != nil {
			logrus.Warnf("id filter lookup failed for comment %d: %v", id, err)
		} else if !exists {
			return domain.CommentRow{}, domain.ErrNotFound
		}
	}
	return r.db.GetByID(ctx, id)
}

func (r *commentRepository) Save(ctx context.Context, c *domain.Comment) error {
	if err := r.db.Save(ctx, c); err != nil {
		return err
	}
	r.invalidate(ctx, *c)
	return nil
}

func (r *commentRepository) Remove(ctx context.Context, c domain.Comment) (domain.RemovalOutcome, error) {
	outcome, err := r.db.Remove(ctx, c)
	if err != nil {
		return outcome, err
	}
	r.invalidate(ctx, c)
	return outcome, nil
}

func (r *commentRepository) FetchByPage(ctx context.Context, page string) ([]domain.CommentRow, error) {
	page = domain.CanonicalPage(page)
	return r.cached(ctx, fmt.Sprintf(KeyCommentsPage, page), func(ctx context.Context) ([]domain.CommentRow, error) {
		return r.db.FetchByPage(ctx, page)
	})
}

func (r *commentRepository) FetchByUser(ctx context.Context, userID int64) ([]domain.CommentRow, error) {
	return r.cached(ctx, fmt.Sprintf(KeyCommentsUser, userID), func(ctx context.Context) ([]domain.CommentRow, error) {
		return r.db.FetchByUser(ctx, userID)
	})
}

func (r *commentRepository) FetchRecent(ctx context.Context, limit int) ([]domain.CommentRow, error) {
	if limit > RecentCacheSize {
		return r.db.FetchRecent(ctx, limit)
	}
	rows, err := r.cached(ctx, KeyCommentsRecent, func(ctx context.Context) ([]domain.CommentRow, error) {
		return r.db.FetchRecent(ctx, RecentCacheSize)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) > limit {
		rows = rows[:max(limit, 0)]
	}
	return rows, nil
}

// cached serves key from the cache and loads it once per key on a miss.
// Cache faults are logged and never fail the read.
func (r *commentRepository) cached(ctx context.Context, key string, load func(context.Context) ([]domain.CommentRow, error)) ([]domain.CommentRow, error) {
	if r.cache == nil {
		return normalize(load(ctx))
	}

	rows, err := r.cache.GetList(ctx, key)
	if err == nil {
		return normalize(rows, nil)
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		logrus.Warnf("comment cache read failed, key: %s, err: %v", key, err)
	}

	gen, err := r.cache.Generation(ctx, key)
	if err != nil {
		logrus.Warnf("comment cache generation read failed, key: %s, err: %v", key, err)
		return normalize(load(ctx))
	}

	// loads started before an invalidation are not shared with readers that came after it
	result, err, _ := r.fetchGroup.Do(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		rows, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.cache.SetList(ctx, key, gen, rows); err != nil {
			logrus.Warnf("comment cache write failed, key: %s, err: %v", key, err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return normalize(result.([]domain.CommentRow), nil)
}

// invalidate drops every listing c appears in
func (r *commentRepository) invalidate(ctx context.Context, c domain.Comment) {
	if r.cache == nil {
		return
	}
	keys := []string{
		fmt.Sprintf(KeyCommentsPage, domain.CanonicalPage(c.Page)),
		fmt.Sprintf(KeyCommentsUser, c.UserID),
		KeyCommentsRecent,
	}
	if err := r.cache.Invalidate(ctx, keys...); err != nil {
		logrus.Errorf("failed to invalidate comment cache for comment %d: %v", c.ID, err)
	}
}

func normalize(rows []domain.CommentRow, err error) ([]domain.CommentRow, error) {
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return []domain.CommentRow{}, nil
	}
	return rows, nil
}
