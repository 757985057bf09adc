package entity

// User is the film service's read-only view of an account.
type User struct {
	ID               string
	Role             string
	WalletAddress    string
	CustodialAddress string
	IsActive         bool
}

func (u *User) IsProducer() bool { return u.Role == "producer" }

// Custodial reports whether purchases are signed with the derived wallet.
func (u *User) Custodial() bool { return u.WalletAddress == "" }

func (u *User) ActiveAddress() string {
	if u.WalletAddress != "" {
		return u.WalletAddress
	}
	return u.CustodialAddress
}
