package model

import (
	"github.com/Guyuepp/go-comment-engine/domain"
)

type User struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Handle   string `gorm:"column:handle;type:varchar(64);not null;uniqueIndex"`
	Username string `gorm:"column:username;type:varchar(255);not null"`
	Email    string `gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	Picture  string `gorm:"column:picture;type:varchar(255)"`
	Data     string `gorm:"column:data;type:text"`
}

func (User) TableName() string {
	return "users"
}

func (m *User) ToDomain() domain.User {
	return domain.User{
		ID:       m.ID,
		Handle:   m.Handle,
		Username: m.Username,
		Email:    m.Email,
		Picture:  m.Picture,
		Data:     domain.ParseProfileData(m.Data),
	}
}

func NewUserFromDomain(u *domain.User) (*User, error) {
	data, err := u.Data.Encode()
	if err != nil {
		return nil, err
	}
	return &User{
		ID:       u.ID,
		Handle:   u.Handle,
		Username: u.Username,
		Email:    u.Email,
		Picture:  u.Picture,
		Data:     data,
	}, nil
}
