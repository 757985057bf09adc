package model

import (
	"time"

	"reelshare/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PurchaseModel struct {
	ID            string       `gorm:"type:uuid;primary_key" json:"id"`
	BuyerID       string       `gorm:"type:uuid;not null;index" json:"buyer_id"`
	ContentID     string       `gorm:"type:uuid;not null;index" json:"content_id"`
	Type          string       `gorm:"type:varchar(20);not null" json:"type"`
	Network       string       `gorm:"type:varchar(50);not null" json:"network"`
	Price         money.Amount `gorm:"not null" json:"price"`
	ChainAmount   money.Amount `gorm:"not null" json:"chain_amount"`
	ApproveTxHash string       `gorm:"type:varchar(66)" json:"approve_tx_hash"`
	TxHash        string       `gorm:"type:varchar(66);not null;uniqueIndex" json:"tx_hash"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (PurchaseModel) TableName() string {
	return "purchases"
}

func (p *PurchaseModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

type InvestmentModel struct {
	ID              string       `gorm:"type:uuid;primary_key" json:"id"`
	InvestorID      string       `gorm:"type:uuid;not null;index" json:"investor_id"`
	ContentID       string       `gorm:"type:uuid;not null;index" json:"content_id"`
	PurchaseID      string       `gorm:"type:uuid;index" json:"purchase_id"`
	Shares          int64        `gorm:"not null;check:shares > 0" json:"shares"`
	AmountInvested  money.Amount `gorm:"not null" json:"amount_invested"`
	TxHash          string       `gorm:"type:varchar(66)" json:"tx_hash"`
	ClaimedEarnings money.Amount `gorm:"not null;default:0" json:"claimed_earnings"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (InvestmentModel) TableName() string {
	return "investments"
}

func (i *InvestmentModel) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

type UnsettledPaymentModel struct {
	ID        string       `gorm:"type:uuid;primary_key" json:"id"`
	BuyerID   string       `gorm:"type:uuid;not null;index" json:"buyer_id"`
	ContentID string       `gorm:"type:uuid;not null" json:"content_id"`
	Type      string       `gorm:"type:varchar(20);not null" json:"type"`
	Shares    int64        `json:"shares"`
	Network   string       `gorm:"type:varchar(50);not null" json:"network"`
	TxHash    string       `gorm:"type:varchar(66);not null;uniqueIndex" json:"tx_hash"`
	Amount    money.Amount `gorm:"not null" json:"amount"`
	Reason    string       `gorm:"type:text" json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

func (UnsettledPaymentModel) TableName() string {
	return "unsettled_payments"
}

func (u *UnsettledPaymentModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}
