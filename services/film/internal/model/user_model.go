package model

// UserModel maps the columns of the users table the film service reads.
// The auth service owns the table.
type UserModel struct {
	ID               string  `gorm:"type:uuid;primary_key"`
	Role             string  `gorm:"type:varchar(20)"`
	WalletAddress    *string `gorm:"type:varchar(42)"`
	CustodialAddress string  `gorm:"type:varchar(42)"`
	IsActive         bool    `gorm:"default:true"`
}

func (UserModel) TableName() string {
	return "users"
}
