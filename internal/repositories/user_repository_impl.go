package repositories

import (
	"context"
	"errors"
	"fmt"

	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "phone"}}, DoNothing: true}).
		Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.GetByPhone(ctx, user.Phone)
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.first(ctx, "phone = ?", phone)
}

func (r *userRepository) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
