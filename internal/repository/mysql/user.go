package mysql

import (
	"context"
	"errors"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/repository/mysql/model"
	"gorm.io/gorm"
)

type userRepository struct {
	DB *gorm.DB
}

var _ domain.UserRepository = (*userRepository)(nil)

// NewUserRepository will create an implementation of domain.UserRepository
func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{
		DB: db,
	}
}

func (m *userRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return m.getBy(ctx, "id = ?", id)
}

func (m *userRepository) GetByHandle(ctx context.Context, handle string) (domain.User, error) {
	return m.getBy(ctx, "handle = ?", handle)
}

func (m *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return m.getBy(ctx, "email = ?", email)
}

func (m *userRepository) SaveData(ctx context.Context, u *domain.User) error {
	row, err := model.NewUserFromDomain(u)
	if err != nil {
		return err
	}

	// only the profile blob is ours to write
	result := m.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", row.ID).Select("data").Updates(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := m.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (m *userRepository) getBy(ctx context.Context, query string, arg any) (domain.User, error) {
	var user model.User
	err := m.DB.WithContext(ctx).Where(query, arg).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}

	return user.ToDomain(), nil
}
