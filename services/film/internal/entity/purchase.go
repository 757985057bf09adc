package entity

import (
	"time"

	"reelshare/pkg/money"
)

type PurchaseType string

const (
	PurchaseDirect     PurchaseType = "direct"
	PurchaseNFT        PurchaseType = "nft"
	PurchaseInvestment PurchaseType = "investment"
)

func (t PurchaseType) Valid() bool {
	return t == PurchaseDirect || t == PurchaseNFT || t == PurchaseInvestment
}

// PurchaseRequest is one of DirectPurchase, NFTPurchase or InvestmentPurchase.
type PurchaseRequest interface {
	Type() PurchaseType
	Content() string
}

type DirectPurchase struct {
	ContentID string
}

func (DirectPurchase) Type() PurchaseType { return PurchaseDirect }
func (p DirectPurchase) Content() string { return p.ContentID }

type NFTPurchase struct {
	ContentID string
}

func (NFTPurchase) Type() PurchaseType { return PurchaseNFT }
func (p NFTPurchase) Content() string { return p.ContentID }

type InvestmentPurchase struct {
	ContentID string
	Shares    int64
}

func (InvestmentPurchase) Type() PurchaseType { return PurchaseInvestment }
func (p InvestmentPurchase) Content() string { return p.ContentID }

// Purchase is written once, when the purchase transaction is confirmed.
type Purchase struct {
	ID            string       `json:"id"`
	BuyerID       string       `json:"buyer_id"`
	ContentID     string       `json:"content_id"`
	Type          PurchaseType `json:"type"`
	Network       string       `json:"network"`
	Price         money.Amount `json:"price"`
	ChainAmount   money.Amount `json:"chain_amount"`
	ApproveTxHash string       `json:"approve_tx_hash,omitempty"`
	TxHash        string       `json:"tx_hash"`
	CreatedAt     time.Time    `json:"created_at"`
}

type Investment struct {
	ID              string       `json:"id"`
	InvestorID      string       `json:"investor_id"`
	ContentID       string       `json:"content_id"`
	PurchaseID      string       `json:"purchase_id,omitempty"`
	Shares          int64        `json:"shares"`
	AmountInvested  money.Amount `json:"amount_invested"`
	TxHash          string       `json:"tx_hash,omitempty"`
	ClaimedEarnings money.Amount `json:"claimed_earnings"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Holder is one investment position at settlement time.
type Holder struct {
	InvestmentID string
	InvestorID   string
	Shares       int64
}

// UnsettledPayment is a confirmed on-chain payment that could not be settled
// in the ledger. It is kept for manual refund and never retried.
type UnsettledPayment struct {
	ID        string       `json:"id"`
	BuyerID   string       `json:"buyer_id"`
	ContentID string       `json:"content_id"`
	Type      PurchaseType `json:"type"`
	Shares    int64        `json:"shares,omitempty"`
	Network   string       `json:"network"`
	TxHash    string       `json:"tx_hash"`
	Amount    money.Amount `json:"amount"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}
