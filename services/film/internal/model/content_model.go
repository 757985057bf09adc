package model

import (
	"time"

	"reelshare/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContentModel struct {
	ID                 string         `gorm:"type:uuid;primary_key" json:"id"`
	ProducerID         string         `gorm:"type:uuid;not null;index" json:"producer_id"`
	Title              string         `gorm:"not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	Genre              string         `gorm:"type:varchar(50)" json:"genre"`
	Duration           int64          `json:"duration"`
	ReleaseDate        time.Time      `json:"release_date"`
	MediaKey           string         `gorm:"type:varchar(500)" json:"media_key"`
	ContentHash        string         `gorm:"type:varchar(128)" json:"content_hash"`
	Network            string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_contents_chain_id" json:"network"`
	ChainContentID     string         `gorm:"type:varchar(78);uniqueIndex:idx_contents_chain_id" json:"chain_content_id"`
	TokenID            *string        `gorm:"type:varchar(78);index" json:"token_id"`
	DirectPrice        money.Amount   `gorm:"not null;default:0" json:"direct_price"`
	NFTPrice           money.Amount   `gorm:"not null;default:0" json:"nft_price"`
	PricePerShare      money.Amount   `gorm:"not null;default:0" json:"price_per_share"`
	TotalShares        int64          `gorm:"not null;default:0" json:"total_shares"`
	AvailableShares    int64          `gorm:"not null;default:0;check:available_shares >= 0" json:"available_shares"`
	CreatorShare       int            `gorm:"not null" json:"creator_share"`
	InvestorShare      int            `gorm:"not null" json:"investor_share"`
	PlatformFee        int            `gorm:"not null" json:"platform_fee"`
	AccumulatedRevenue money.Amount   `gorm:"not null;default:0" json:"accumulated_revenue"`
	IsActive           bool           `gorm:"default:true" json:"is_active"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ContentModel) TableName() string {
	return "contents"
}

func (c *ContentModel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
