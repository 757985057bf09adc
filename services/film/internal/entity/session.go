package entity

import (
	"time"

	"reelshare/pkg/money"
)

type SessionState string

const (
	StateSelect     SessionState = "select"
	StateApproving  SessionState = "approving"
	StatePurchasing SessionState = "purchasing"
	StateSettled    SessionState = "settled"
)

// Session tracks one approve-then-purchase flow. The price is fixed at quote
// time and never re-read.
type Session struct {
	ID        string       `json:"id"`
	BuyerID   string       `json:"buyer_id"`
	Type      PurchaseType `json:"type"`
	ContentID string       `json:"content_id"`
	Shares    int64        `json:"shares,omitempty"`
	Network   string       `json:"network"`

	Price         money.Amount `json:"price"`
	ChainAmount   money.Amount `json:"chain_amount"`
	TokenDecimals uint8        `json:"token_decimals"`
	PaymentToken  string       `json:"payment_token"`
	Spender       string       `json:"spender"`
	Contract      string       `json:"contract"`
	Method        string       `json:"method"`

	Custodial    bool   `json:"custodial"`
	PayerAddress string `json:"payer_address"`

	State SessionState `json:"state"`
	// InFlight is set while a transaction is being sent or awaits its receipt.
	InFlight       bool   `json:"in_flight"`
	ApproveTxHash  string `json:"approve_tx_hash,omitempty"`
	PurchaseTxHash string `json:"purchase_tx_hash,omitempty"`
	PurchaseID     string `json:"purchase_id,omitempty"`
	LastError      string `json:"last_error,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Request() PurchaseRequest {
	switch s.Type {
	case PurchaseNFT:
		return NFTPurchase{ContentID: s.ContentID}
	case PurchaseInvestment:
		return InvestmentPurchase{ContentID: s.ContentID, Shares: s.Shares}
	default:
		return DirectPurchase{ContentID: s.ContentID}
	}
}
