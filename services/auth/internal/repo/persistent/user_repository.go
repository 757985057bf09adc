package persistent

import (
	"errors"
	"strings"

	"reelshare/pkg/apperr"
	"reelshare/services/auth/internal/entity"
	"reelshare/services/auth/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *entity.User) error
	GetByEmail(email string) (*entity.User, error)
	GetByID(id string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	GetByWalletAddress(address string) (*entity.User, error)
	Update(user *entity.User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *entity.User) error {
	userModel := ToUserModel(user)
	if userModel.ID == "" {
		userModel.ID = uuid.New().String()
	}
	if err := r.db.Create(userModel).Error; err != nil {
		return err
	}
	*user = *ToUserEntity(userModel)
	return nil
}

func (r *userRepository) first(query string, arg interface{}) (*entity.User, error) {
	var userModel model.UserModel
	if err := r.db.Where(query, arg).First(&userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return ToUserEntity(&userModel), nil
}

func (r *userRepository) GetByEmail(email string) (*entity.User, error) {
	return r.first("email = ?", strings.ToLower(email))
}

func (r *userRepository) GetByID(id string) (*entity.User, error) {
	return r.first("id = ?", id)
}

func (r *userRepository) GetByUsername(username string) (*entity.User, error) {
	return r.first("username = ?", username)
}

func (r *userRepository) GetByWalletAddress(address string) (*entity.User, error) {
	return r.first("wallet_address = ?", strings.ToLower(address))
}

func (r *userRepository) Update(user *entity.User) error {
	userModel := ToUserModel(user)
	return r.db.Save(userModel).Error
}
