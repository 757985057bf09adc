package usecase

import (
	"context"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/pkg/logger"
	"reelshare/pkg/metrics"
	"reelshare/pkg/money"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/repo/persistent"
)

// Settlement describes a confirmed purchase transaction.
type Settlement struct {
	BuyerID       string
	ContentID     string
	Type          entity.PurchaseType
	Shares        int64
	Network       string
	Price         money.Amount
	ChainAmount   money.Amount
	ApproveTxHash string
	TxHash        string
}

// Ledger records confirmed purchases and pays out earnings. Every write for a
// purchase happens in one database transaction keyed by the purchase tx hash.
type Ledger struct {
	repo    persistent.LedgerRepository
	metrics *metrics.MarketMetrics
	logger  *logger.Logger
}

func NewLedger(repo persistent.LedgerRepository, m *metrics.MarketMetrics, log *logger.Logger) *Ledger {
	return &Ledger{repo: repo, metrics: m, logger: log}
}

// Settle writes the purchase, the investment (if any), the earnings split and
// the platform revenue. Settling the same tx hash again returns the existing
// purchase.
func (l *Ledger) Settle(ctx context.Context, s Settlement) (*entity.Purchase, error) {
	if s.TxHash == "" {
		return nil, apperr.Validation("purchase transaction hash is required")
	}
	if s.Type == entity.PurchaseInvestment && s.Shares <= 0 {
		return nil, apperr.Validation("shares must be positive")
	}

	var purchase *entity.Purchase
	replayed := false
	err := l.repo.Transaction(ctx, func(tx persistent.LedgerTx) error {
		existing, err := tx.PurchaseByTxHash(s.TxHash)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.BuyerID != s.BuyerID || existing.ContentID != s.ContentID || existing.Type != s.Type {
				return apperr.Conflict("transaction %s already settled another purchase", s.TxHash)
			}
			purchase = existing
			replayed = true
			return nil
		}

		content, err := tx.LockContent(s.ContentID)
		if err != nil {
			return err
		}
		// Holders are read before this purchase's own reservation, so a new
		// investor does not earn from their own capital.
		holders, err := tx.Holders(s.ContentID)
		if err != nil {
			return err
		}
		dist, err := Split(content, s.Price, holders)
		if err != nil {
			return err
		}

		if s.Type == entity.PurchaseInvestment {
			if err := tx.ReserveShares(s.ContentID, s.Shares); err != nil {
				return err
			}
		}

		purchase = &entity.Purchase{
			BuyerID:       s.BuyerID,
			ContentID:     s.ContentID,
			Type:          s.Type,
			Network:       s.Network,
			Price:         s.Price,
			ChainAmount:   s.ChainAmount,
			ApproveTxHash: s.ApproveTxHash,
			TxHash:        s.TxHash,
		}
		if err := tx.CreatePurchase(purchase); err != nil {
			return err
		}

		if s.Type == entity.PurchaseInvestment {
			investment := &entity.Investment{
				InvestorID:     s.BuyerID,
				ContentID:      s.ContentID,
				PurchaseID:     purchase.ID,
				Shares:         s.Shares,
				AmountInvested: s.Price,
				TxHash:         s.TxHash,
			}
			if err := tx.CreateInvestment(investment); err != nil {
				return err
			}
		}

		var earnings []*entity.Earning
		if dist.Creator.Sign() > 0 {
			earnings = append(earnings, &entity.Earning{
				BeneficiaryID: content.ProducerID,
				ContentID:     s.ContentID,
				PurchaseID:    purchase.ID,
				Source:        entity.CreatorSource(s.Type),
				Amount:        dist.Creator,
				TxHash:        s.TxHash,
			})
		}
		for _, h := range dist.Holders {
			if h.Amount.Sign() == 0 {
				continue
			}
			earnings = append(earnings, &entity.Earning{
				BeneficiaryID: h.InvestorID,
				ContentID:     s.ContentID,
				PurchaseID:    purchase.ID,
				InvestmentID:  h.InvestmentID,
				Source:        entity.SourceInvestorPool,
				Amount:        h.Amount,
				TxHash:        s.TxHash,
			})
		}
		if err := tx.CreateEarnings(earnings); err != nil {
			return err
		}

		if dist.Platform.Sign() > 0 {
			if err := tx.CreatePlatformRevenue(&entity.PlatformRevenue{
				ContentID:  s.ContentID,
				PurchaseID: purchase.ID,
				Amount:     dist.Platform,
			}); err != nil {
				return err
			}
		}

		_, err = tx.AddRevenue(s.ContentID, s.Price)
		return err
	})
	if err != nil {
		l.metrics.ObserveSettlement(string(s.Type), string(apperr.KindOf(err)))
		return nil, err
	}

	if replayed {
		l.metrics.ObserveSettlement(string(s.Type), "replayed")
		return purchase, nil
	}
	l.metrics.ObserveSettlement(string(s.Type), "settled")
	if s.Type == entity.PurchaseInvestment {
		l.metrics.ObserveSharesReserved(s.ContentID, s.Shares)
	}
	l.logger.Info("Settled %s purchase %s of content %s for %s (tx %s)", s.Type, purchase.ID, s.ContentID, s.Price, s.TxHash)
	return purchase, nil
}

// RecordUnsettled keeps a confirmed payment the ledger refused, for manual refund.
func (l *Ledger) RecordUnsettled(ctx context.Context, s Settlement, reason error) error {
	payment := &entity.UnsettledPayment{
		BuyerID:   s.BuyerID,
		ContentID: s.ContentID,
		Type:      s.Type,
		Shares:    s.Shares,
		Network:   s.Network,
		TxHash:    s.TxHash,
		Amount:    s.Price,
		Reason:    reason.Error(),
	}
	if err := l.repo.RecordUnsettled(ctx, payment); err != nil {
		l.logger.Error("Failed to record unsettled payment %s: %v", s.TxHash, err)
		return err
	}
	l.metrics.ObserveSettlement(string(s.Type), "unsettled")
	l.logger.Warn("Payment %s for content %s could not be settled: %v", s.TxHash, s.ContentID, reason)
	return nil
}

// ClaimEarnings marks every unclaimed earning of beneficiary on content as
// claimed and returns their sum. A second call with nothing new returns zero.
func (l *Ledger) ClaimEarnings(ctx context.Context, beneficiaryID, contentID string) (money.Amount, error) {
	var total money.Amount
	err := l.repo.Transaction(ctx, func(tx persistent.LedgerTx) error {
		earnings, err := tx.UnclaimedEarnings(beneficiaryID, contentID)
		if err != nil {
			return err
		}
		if len(earnings) == 0 {
			return nil
		}

		ids := make([]string, len(earnings))
		amounts := make([]money.Amount, len(earnings))
		perInvestment := make(map[string]money.Amount)
		for i, e := range earnings {
			ids[i] = e.ID
			amounts[i] = e.Amount
			if e.Source == entity.SourceInvestorPool && e.InvestmentID != "" {
				perInvestment[e.InvestmentID] = perInvestment[e.InvestmentID].Add(e.Amount)
			}
		}
		if err := tx.MarkClaimed(ids, time.Now()); err != nil {
			return err
		}
		for investmentID, amount := range perInvestment {
			if err := tx.AddClaimed(investmentID, amount); err != nil {
				return err
			}
		}
		total = money.Sum(amounts...)
		return nil
	})
	if err != nil {
		return money.Amount{}, err
	}
	if total.Sign() > 0 {
		l.logger.Info("User %s claimed %s on content %s", beneficiaryID, total, contentID)
	}
	return total, nil
}
