package entity

import (
	"time"

	"reelshare/pkg/money"
)

type EarningSource string

const (
	SourceDirectSale   EarningSource = "direct_sale"
	SourceNFTSale      EarningSource = "nft_sale"
	SourceShareSale    EarningSource = "share_sale"
	SourceRoyalty      EarningSource = "royalty"
	SourceInvestorPool EarningSource = "investor_pool"
)

// CreatorSource is the earning source of the creator's part of a sale.
func CreatorSource(t PurchaseType) EarningSource {
	switch t {
	case PurchaseNFT:
		return SourceNFTSale
	case PurchaseInvestment:
		return SourceShareSale
	default:
		return SourceDirectSale
	}
}

type Earning struct {
	ID            string        `json:"id"`
	BeneficiaryID string        `json:"beneficiary_id"`
	ContentID     string        `json:"content_id"`
	PurchaseID    string        `json:"purchase_id,omitempty"`
	InvestmentID  string        `json:"investment_id,omitempty"`
	Source        EarningSource `json:"source"`
	Amount        money.Amount  `json:"amount"`
	TxHash        string        `json:"tx_hash,omitempty"`
	Claimed       bool          `json:"claimed"`
	ClaimedAt     *time.Time    `json:"claimed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type PlatformRevenue struct {
	ID         string       `json:"id"`
	ContentID  string       `json:"content_id"`
	PurchaseID string       `json:"purchase_id"`
	Amount     money.Amount `json:"amount"`
	CreatedAt  time.Time    `json:"created_at"`
}

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutSent    PayoutStatus = "sent"
	PayoutFailed  PayoutStatus = "failed"
	PayoutUnknown PayoutStatus = "unknown"
)

// Payout is an on-chain transfer of claimed earnings from the platform wallet.
type Payout struct {
	ID            string       `json:"id"`
	BeneficiaryID string       `json:"beneficiary_id"`
	ContentID     string       `json:"content_id"`
	Network       string       `json:"network"`
	Amount        money.Amount `json:"amount"`
	ChainAmount   money.Amount `json:"chain_amount"`
	ToAddress     string       `json:"to_address"`
	TxHash        string       `json:"tx_hash,omitempty"`
	Status        PayoutStatus `json:"status"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type RevenueSummary struct {
	ContentID          string                         `json:"content_id"`
	Title              string                         `json:"title"`
	AccumulatedRevenue money.Amount                   `json:"accumulated_revenue"`
	Claimed            money.Amount                   `json:"claimed"`
	Unclaimed          money.Amount                   `json:"unclaimed"`
	BySource           map[EarningSource]money.Amount `json:"by_source"`
}

type Analytics struct {
	ContentID          string                        `json:"content_id"`
	PurchasesByType    map[PurchaseType]int64        `json:"purchases_by_type"`
	RevenueByType      map[PurchaseType]money.Amount `json:"revenue_by_type"`
	AccumulatedRevenue money.Amount                  `json:"accumulated_revenue"`
	Investors          int                           `json:"investors"`
	SharesSold         int64                         `json:"shares_sold"`
	TotalShares        int64                         `json:"total_shares"`
	OnChainViews       *int64                        `json:"on_chain_views,omitempty"`
}
