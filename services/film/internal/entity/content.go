package entity

import (
	"time"

	"reelshare/pkg/apperr"
	"reelshare/pkg/money"
)

// Content is a film listed on the marketplace. Prices are canonical minor
// units; TotalShares never changes after creation.
type Content struct {
	ID             string    `json:"id"`
	ProducerID     string    `json:"producer_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Genre          string    `json:"genre"`
	Duration       int64     `json:"duration"`
	ReleaseDate    time.Time `json:"release_date"`
	MediaKey       string    `json:"-"`
	ContentHash    string    `json:"content_hash"`
	Network        string    `json:"network"`
	ChainContentID string    `json:"chain_content_id"`
	// TokenID is empty until the film is minted.
	TokenID            string       `json:"token_id,omitempty"`
	DirectPrice        money.Amount `json:"direct_price"`
	NFTPrice           money.Amount `json:"nft_price"`
	PricePerShare      money.Amount `json:"price_per_share"`
	TotalShares        int64        `json:"total_shares"`
	AvailableShares    int64        `json:"available_shares"`
	CreatorShare       int          `json:"creator_share"`
	InvestorShare      int          `json:"investor_share"`
	PlatformFee        int          `json:"platform_fee"`
	AccumulatedRevenue money.Amount `json:"accumulated_revenue"`
	IsActive           bool         `json:"is_active"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// ValidateSplit enforces creator + investor + platform == 100.
func ValidateSplit(creator, investor, platform int) error {
	if creator < 0 || investor < 0 || platform < 0 {
		return apperr.Validation("revenue shares must not be negative")
	}
	if creator+investor+platform != 100 {
		return apperr.Validation("revenue shares must sum to 100, got %d", creator+investor+platform)
	}
	return nil
}

func (c *Content) ValidateSplit() error {
	return ValidateSplit(c.CreatorShare, c.InvestorShare, c.PlatformFee)
}

func (c *Content) IsMinted() bool { return c.TokenID != "" }

func (c *Content) SharesSold() int64 { return c.TotalShares - c.AvailableShares }
