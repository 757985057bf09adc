package model

import (
	"time"

	"reelshare/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EarningModel struct {
	ID            string       `gorm:"type:uuid;primary_key" json:"id"`
	BeneficiaryID string       `gorm:"type:uuid;not null;index:idx_earnings_beneficiary" json:"beneficiary_id"`
	ContentID     string       `gorm:"type:uuid;not null;index:idx_earnings_beneficiary" json:"content_id"`
	PurchaseID    *string      `gorm:"type:uuid;index" json:"purchase_id"`
	InvestmentID  *string      `gorm:"type:uuid" json:"investment_id"`
	Source        string       `gorm:"type:varchar(20);not null" json:"source"`
	Amount        money.Amount `gorm:"not null" json:"amount"`
	TxHash        string       `gorm:"type:varchar(66)" json:"tx_hash"`
	Claimed       bool         `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt     *time.Time   `json:"claimed_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (EarningModel) TableName() string {
	return "earnings"
}

func (e *EarningModel) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

type PlatformRevenueModel struct {
	ID         string       `gorm:"type:uuid;primary_key" json:"id"`
	ContentID  string       `gorm:"type:uuid;not null;index" json:"content_id"`
	PurchaseID string       `gorm:"type:uuid;not null" json:"purchase_id"`
	Amount     money.Amount `gorm:"not null" json:"amount"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (PlatformRevenueModel) TableName() string {
	return "platform_revenue"
}

func (p *PlatformRevenueModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

type PayoutModel struct {
	ID            string       `gorm:"type:uuid;primary_key" json:"id"`
	BeneficiaryID string       `gorm:"type:uuid;not null;index" json:"beneficiary_id"`
	ContentID     string       `gorm:"type:uuid;not null" json:"content_id"`
	Network       string       `gorm:"type:varchar(50);not null" json:"network"`
	Amount        money.Amount `gorm:"not null" json:"amount"`
	ChainAmount   money.Amount `gorm:"not null" json:"chain_amount"`
	ToAddress     string       `gorm:"type:varchar(42);not null" json:"to_address"`
	TxHash        string       `gorm:"type:varchar(66)" json:"tx_hash"`
	Status        string       `gorm:"type:varchar(20);not null" json:"status"`
	Error         string       `gorm:"type:text" json:"error"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (PayoutModel) TableName() string {
	return "payouts"
}

func (p *PayoutModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
