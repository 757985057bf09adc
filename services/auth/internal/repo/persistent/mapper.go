package persistent

import (
	"strings"

	"reelshare/services/auth/internal/entity"
	"reelshare/services/auth/internal/model"
)

func ToUserEntity(m *model.UserModel) *entity.User {
	if m == nil {
		return nil
	}

	user := &entity.User{
		ID:               m.ID,
		Username:         m.Username,
		Password:         m.Password,
		Role:             entity.UserRole(m.Role),
		CustodialAddress: m.CustodialAddress,
		IsActive:         m.IsActive,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.Email != nil {
		user.Email = *m.Email
	}
	if m.WalletAddress != nil {
		user.WalletAddress = *m.WalletAddress
	}
	return user
}

func ToUserModel(e *entity.User) *model.UserModel {
	if e == nil {
		return nil
	}

	m := &model.UserModel{
		ID:               e.ID,
		Username:         e.Username,
		Password:         e.Password,
		Role:             string(e.Role),
		CustodialAddress: e.CustodialAddress,
		IsActive:         e.IsActive,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	if e.Email != "" {
		email := strings.ToLower(e.Email)
		m.Email = &email
	}
	if e.WalletAddress != "" {
		wallet := strings.ToLower(e.WalletAddress)
		m.WalletAddress = &wallet
	}
	return m
}
