package entity

import "time"

type UserRole string

const (
	RoleViewer   UserRole = "viewer"
	RoleProducer UserRole = "producer"
)

func (r UserRole) Valid() bool {
	return r == RoleViewer || r == RoleProducer
}

type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username"`
	Password string   `json:"-"`
	Role     UserRole `json:"role"`
	// WalletAddress is the user's own externally-owned account, if linked.
	WalletAddress    string    `json:"wallet_address,omitempty"`
	CustodialAddress string    `json:"custodial_address"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (u *User) IsProducer() bool { return u.Role == RoleProducer }

// ActiveAddress is the account purchases are made from.
func (u *User) ActiveAddress() string {
	if u.WalletAddress != "" {
		return u.WalletAddress
	}
	return u.CustodialAddress
}
