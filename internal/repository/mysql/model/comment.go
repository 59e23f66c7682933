package model

import (
	"time"

	"github.com/Guyuepp/go-comment-engine/domain"
)

type Comment struct {
	ID      int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID  int64     `gorm:"column:user;not null;index"`
	Comment string    `gorm:"column:comment;type:text;not null"`
	Page    string    `gorm:"column:page;type:varchar(255);not null;index"`
	Time    time.Time `gorm:"column:time;type:datetime;not null;index"`
	Status  string    `gorm:"column:status;type:varchar(16);not null;default:active"`
	Parent  *int64    `gorm:"column:parent;index"`
}

func (Comment) TableName() string {
	return "comments"
}

func NewCommentFromDomain(c *domain.Comment) *Comment {
	return &Comment{
		ID:      c.ID,
		UserID:  c.UserID,
		Comment: c.Comment,
		Page:    c.Page,
		Time:    c.Time,
		Status:  string(c.Status),
		Parent:  c.ParentID,
	}
}

func (m *Comment) ToDomain() domain.Comment {
	return domain.Comment{
		ID:       m.ID,
		UserID:   m.UserID,
		Comment:  m.Comment,
		Page:     m.Page,
		Time:     m.Time,
		Status:   domain.Status(m.Status),
		ParentID: m.Parent,
	}
}

// CommentRow is the result of joining comments with users
type CommentRow struct {
	Comment
	Username   string `gorm:"column:username"`
	UserHandle string `gorm:"column:userhandle"`
	Picture    string `gorm:"column:picture"`
	Data       string `gorm:"column:data"`
}

// CommentRowColumns selects everything CommentRow scans
const CommentRowColumns = "comments.id, comments.user, comments.comment, comments.page, comments.time, " +
	"comments.status, comments.parent, users.username, users.handle AS userhandle, users.picture, users.data"

// CommentRowJoin links a comment to its author
const CommentRowJoin = "JOIN users ON users.id = comments.user"

func (m *CommentRow) ToDomain() domain.CommentRow {
	return domain.CommentRow{
		Comment:    m.Comment.ToDomain(),
		Username:   m.Username,
		UserHandle: m.UserHandle,
		Picture:    m.Picture,
		Data:       domain.ParseProfileData(m.Data),
	}
}
