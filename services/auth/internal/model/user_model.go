package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserModel struct {
	ID               string         `gorm:"type:uuid;primary_key" json:"id"`
	Email            *string        `gorm:"uniqueIndex" json:"email"`
	Username         string         `gorm:"uniqueIndex;not null" json:"username"`
	Password         string         `gorm:"type:varchar(255)" json:"-"`
	Role             string         `gorm:"type:varchar(20);default:'viewer'" json:"role"`
	WalletAddress    *string        `gorm:"type:varchar(42);uniqueIndex" json:"wallet_address"`
	CustodialAddress string         `gorm:"type:varchar(42);not null" json:"custodial_address"`
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (UserModel) TableName() string {
	return "users"
}

func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}
