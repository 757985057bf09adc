package persistent

import (
	"errors"

	"reelshare/pkg/apperr"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	GetByID(id string) (*entity.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(id string) (*entity.User, error) {
	var userModel model.UserModel
	if err := r.db.Where("id = ?", id).First(&userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return ToUserEntity(&userModel), nil
}
