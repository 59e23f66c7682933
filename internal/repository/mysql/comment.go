package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/repository/mysql/model"
)

type commentRepository struct {
	DB  *gorm.DB
	now func() time.Time
}

var (
	_ domain.CommentRepository = (*commentRepository)(nil)
	_ domain.CommentIDSource   = (*commentRepository)(nil)
)

func NewCommentRepository(db *gorm.DB) *commentRepository {
	return &commentRepository{
		DB:  db,
		now: time.Now,
	}
}

func (c *commentRepository) Create(ctx context.Context, authorID int64, page, body string, parentID *int64) (domain.CommentRow, error) {
	page = domain.CanonicalPage(strings.TrimSpace(page))
	if strings.TrimSpace(body) == "" {
		return domain.CommentRow{}, fmt.Errorf("%w: comment is empty", domain.ErrBadParamInput)
	}
	if page == "" {
		return domain.CommentRow{}, fmt.Errorf("%w: page is empty", domain.ErrBadParamInput)
	}
	if parentID != nil && *parentID <= 0 {
		parentID = nil
	}

	comment := model.Comment{
		UserID:  authorID,
		Comment: body,
		Page:    page,
		// datetime columns keep whole seconds
		Time:   c.now().UTC().Truncate(time.Second),
		Status: string(domain.StatusActive),
		Parent: parentID,
	}

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			// Holding a shared lock on the parent until commit keeps Remove
			// from deleting it while this reply is being inserted.
			var parent model.Comment
			err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
				Select("id").
				Where("id = ?", *parentID).
				Take(&parent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrParentNotFound
			}
			if err != nil {
				return err
			}
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return domain.CommentRow{}, err
	}

	return c.GetByID(ctx, comment.ID)
}

func (c *commentRepository) GetByID(ctx context.Context, id int64) (domain.CommentRow, error) {
	var rows []model.CommentRow
	err := c.rows(ctx).
		Where("comments.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return domain.CommentRow{}, err
	}
	if len(rows) == 0 {
		return domain.CommentRow{}, domain.ErrNotFound
	}
	return rows[0].ToDomain(), nil
}

func (c *commentRepository) Save(ctx context.Context, comment *domain.Comment) error {
	return saveComment(c.DB.WithContext(ctx), comment)
}

func saveComment(tx *gorm.DB, comment *domain.Comment) error {
	row := model.NewCommentFromDomain(comment)
	result := tx.Model(&model.Comment{}).
		Where("id = ?", row.ID).
		Select("comment", "status").
		Updates(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL reports 0 for an unchanged row as well
		var count int64
		if err := tx.Model(&model.Comment{}).Where("id = ?", comment.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (c *commentRepository) Remove(ctx context.Context, comment domain.Comment) (domain.RemovalOutcome, error) {
	var outcome domain.RemovalOutcome
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target model.Comment
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", comment.ID).
			Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var children []int64
		err = tx.Model(&model.Comment{}).
			Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
			Where("parent = ?", comment.ID).
			Limit(1).
			Pluck("id", &children).Error
		if err != nil {
			return err
		}

		if len(children) > 0 {
			// Replies still point here; keep the row.
			current := target.ToDomain()
			current.Status = domain.StatusRemoved
			outcome = domain.RemovalSoftened
			return saveComment(tx, &current)
		}

		if err := tx.Delete(&model.Comment{}, comment.ID).Error; err != nil {
			return err
		}
		outcome = domain.RemovalDeleted
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (c *commentRepository) FetchByPage(ctx context.Context, page string) ([]domain.CommentRow, error) {
	return c.fetch(c.rows(ctx).
		Where("comments.page = ?", domain.CanonicalPage(page)).
		Order("comments.id"))
}

func (c *commentRepository) FetchByUser(ctx context.Context, userID int64) ([]domain.CommentRow, error) {
	return c.fetch(c.rows(ctx).
		Where("comments.user = ?", userID).
		Order("comments.id"))
}

func (c *commentRepository) FetchRecent(ctx context.Context, limit int) ([]domain.CommentRow, error) {
	if limit <= 0 {
		return []domain.CommentRow{}, nil
	}
	return c.fetch(c.rows(ctx).
		Order("comments.time DESC").
		Order("comments.id DESC").
		Limit(limit))
}

func (c *commentRepository) FetchIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := c.DB.WithContext(ctx).
		Model(&model.Comment{}).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comment ids: %w", err)
	}
	return ids, nil
}

func (c *commentRepository) rows(ctx context.Context) *gorm.DB {
	return c.DB.WithContext(ctx).
		Table(model.Comment{}.TableName()).
		Select(model.CommentRowColumns).
		Joins(model.CommentRowJoin)
}

func (c *commentRepository) fetch(q *gorm.DB) ([]domain.CommentRow, error) {
	var rows []model.CommentRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	res := make([]domain.CommentRow, len(rows))
	for i := range rows {
		res[i] = rows[i].ToDomain()
	}
	return res, nil
}
