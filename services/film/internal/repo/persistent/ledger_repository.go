package persistent

import (
	"context"
	"errors"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/pkg/money"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository owns purchases, investments, earnings and the share and
// revenue counters on contents. Multi-row changes go through Transaction.
type LedgerRepository interface {
	Transaction(ctx context.Context, fn func(tx LedgerTx) error) error

	PurchaseByTxHash(ctx context.Context, hash string) (*entity.Purchase, error)
	HasPurchase(ctx context.Context, buyerID, contentID string, types ...entity.PurchaseType) (bool, error)
	PurchasesByContent(ctx context.Context, contentID string) ([]*entity.Purchase, error)
	InvestmentsByContent(ctx context.Context, contentID string) ([]*entity.Investment, error)
	InvestmentsByInvestor(ctx context.Context, investorID string) ([]*entity.Investment, error)
	EarningsByBeneficiary(ctx context.Context, beneficiaryID string) ([]*entity.Earning, error)
	CreateEarning(ctx context.Context, earning *entity.Earning) error
	RecordUnsettled(ctx context.Context, payment *entity.UnsettledPayment) error
	UnsettledPayments(ctx context.Context, buyerID string) ([]*entity.UnsettledPayment, error)
	CreatePayout(ctx context.Context, payout *entity.Payout) error
	UpdatePayout(ctx context.Context, payout *entity.Payout) error
}

// LedgerTx is the set of writes available inside one ledger transaction.
type LedgerTx interface {
	// PurchaseByTxHash returns nil when no purchase was recorded for hash.
	PurchaseByTxHash(hash string) (*entity.Purchase, error)
	LockContent(contentID string) (*entity.Content, error)
	Holders(contentID string) ([]entity.Holder, error)
	ReserveShares(contentID string, shares int64) error
	CreatePurchase(purchase *entity.Purchase) error
	CreateInvestment(investment *entity.Investment) error
	CreateEarnings(earnings []*entity.Earning) error
	CreatePlatformRevenue(revenue *entity.PlatformRevenue) error
	AddRevenue(contentID string, amount money.Amount) (money.Amount, error)
	UnclaimedEarnings(beneficiaryID, contentID string) ([]*entity.Earning, error)
	MarkClaimed(earningIDs []string, at time.Time) error
	AddClaimed(investmentID string, amount money.Amount) error
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Transaction(ctx context.Context, fn func(tx LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{db: tx})
	})
}

func (r *ledgerRepository) PurchaseByTxHash(ctx context.Context, hash string) (*entity.Purchase, error) {
	return (&ledgerTx{db: r.db.WithContext(ctx)}).PurchaseByTxHash(hash)
}

func (r *ledgerRepository) HasPurchase(ctx context.Context, buyerID, contentID string, types ...entity.PurchaseType) (bool, error) {
	query := r.db.WithContext(ctx).Model(&model.PurchaseModel{}).
		Where("buyer_id = ? AND content_id = ?", buyerID, contentID)
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		query = query.Where("type IN ?", names)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ledgerRepository) PurchasesByContent(ctx context.Context, contentID string) ([]*entity.Purchase, error) {
	var purchaseModels []model.PurchaseModel
	if err := r.db.WithContext(ctx).Where("content_id = ?", contentID).Order("created_at ASC").Find(&purchaseModels).Error; err != nil {
		return nil, err
	}

	purchases := make([]*entity.Purchase, len(purchaseModels))
	for i := range purchaseModels {
		purchases[i] = ToPurchaseEntity(&purchaseModels[i])
	}
	return purchases, nil
}

func (r *ledgerRepository) InvestmentsByContent(ctx context.Context, contentID string) ([]*entity.Investment, error) {
	return r.investments(ctx, "content_id = ?", contentID)
}

func (r *ledgerRepository) InvestmentsByInvestor(ctx context.Context, investorID string) ([]*entity.Investment, error) {
	return r.investments(ctx, "investor_id = ?", investorID)
}

func (r *ledgerRepository) investments(ctx context.Context, query string, arg interface{}) ([]*entity.Investment, error) {
	var investmentModels []model.InvestmentModel
	if err := r.db.WithContext(ctx).Where(query, arg).Order("created_at ASC").Find(&investmentModels).Error; err != nil {
		return nil, err
	}

	investments := make([]*entity.Investment, len(investmentModels))
	for i := range investmentModels {
		investments[i] = ToInvestmentEntity(&investmentModels[i])
	}
	return investments, nil
}

func (r *ledgerRepository) EarningsByBeneficiary(ctx context.Context, beneficiaryID string) ([]*entity.Earning, error) {
	var earningModels []model.EarningModel
	if err := r.db.WithContext(ctx).Where("beneficiary_id = ?", beneficiaryID).Order("created_at ASC").Find(&earningModels).Error; err != nil {
		return nil, err
	}

	earnings := make([]*entity.Earning, len(earningModels))
	for i := range earningModels {
		earnings[i] = ToEarningEntity(&earningModels[i])
	}
	return earnings, nil
}

func (r *ledgerRepository) CreateEarning(ctx context.Context, earning *entity.Earning) error {
	return (&ledgerTx{db: r.db.WithContext(ctx)}).CreateEarnings([]*entity.Earning{earning})
}

// RecordUnsettled is idempotent on the transaction hash.
func (r *ledgerRepository) RecordUnsettled(ctx context.Context, payment *entity.UnsettledPayment) error {
	paymentModel := ToUnsettledPaymentModel(payment)
	if paymentModel.ID == "" {
		paymentModel.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_hash"}}, DoNothing: true}).
		Create(paymentModel).Error
	if err != nil {
		return err
	}
	*payment = *ToUnsettledPaymentEntity(paymentModel)
	return nil
}

func (r *ledgerRepository) UnsettledPayments(ctx context.Context, buyerID string) ([]*entity.UnsettledPayment, error) {
	var paymentModels []model.UnsettledPaymentModel
	if err := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).Order("created_at DESC").Find(&paymentModels).Error; err != nil {
		return nil, err
	}

	payments := make([]*entity.UnsettledPayment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = ToUnsettledPaymentEntity(&paymentModels[i])
	}
	return payments, nil
}

func (r *ledgerRepository) CreatePayout(ctx context.Context, payout *entity.Payout) error {
	payoutModel := ToPayoutModel(payout)
	if payoutModel.ID == "" {
		payoutModel.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(payoutModel).Error; err != nil {
		return err
	}
	*payout = *ToPayoutEntity(payoutModel)
	return nil
}

func (r *ledgerRepository) UpdatePayout(ctx context.Context, payout *entity.Payout) error {
	return r.db.WithContext(ctx).Model(&model.PayoutModel{}).Where("id = ?", payout.ID).Updates(map[string]interface{}{
		"tx_hash": payout.TxHash,
		"status":  string(payout.Status),
		"error":   payout.Error,
	}).Error
}

type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) PurchaseByTxHash(hash string) (*entity.Purchase, error) {
	var purchaseModel model.PurchaseModel
	if err := t.db.Where("tx_hash = ?", hash).First(&purchaseModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ToPurchaseEntity(&purchaseModel), nil
}

func (t *ledgerTx) LockContent(contentID string) (*entity.Content, error) {
	query := t.db
	// sqlite has no row locks; it serializes writers instead.
	if t.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var contentModel model.ContentModel
	if err := query.Where("id = ?", contentID).First(&contentModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("content not found")
		}
		return nil, err
	}
	return ToContentEntity(&contentModel), nil
}

// Holders lists every investment position, one entry per investment row.
func (t *ledgerTx) Holders(contentID string) ([]entity.Holder, error) {
	var investmentModels []model.InvestmentModel
	if err := t.db.Where("content_id = ?", contentID).Order("created_at ASC, id ASC").Find(&investmentModels).Error; err != nil {
		return nil, err
	}

	holders := make([]entity.Holder, len(investmentModels))
	for i, m := range investmentModels {
		holders[i] = entity.Holder{InvestmentID: m.ID, InvestorID: m.InvestorID, Shares: m.Shares}
	}
	return holders, nil
}

// ReserveShares decrements available shares only if enough remain, so two
// concurrent reservations can never oversell.
func (t *ledgerTx) ReserveShares(contentID string, shares int64) error {
	if shares <= 0 {
		return apperr.Validation("shares must be positive")
	}

	result := t.db.Model(&model.ContentModel{}).
		Where("id = ? AND available_shares >= ?", contentID, shares).
		UpdateColumn("available_shares", gorm.Expr("available_shares - ?", shares))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var contentModel model.ContentModel
	if err := t.db.Select("id", "available_shares").Where("id = ?", contentID).First(&contentModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("content not found")
		}
		return err
	}
	if contentModel.AvailableShares == 0 {
		return apperr.SoldOut("all shares of this content are sold")
	}
	return apperr.Validation("only %d shares available, requested %d", contentModel.AvailableShares, shares)
}

func (t *ledgerTx) CreatePurchase(purchase *entity.Purchase) error {
	purchaseModel := ToPurchaseModel(purchase)
	if purchaseModel.ID == "" {
		purchaseModel.ID = uuid.New().String()
	}
	if err := t.db.Create(purchaseModel).Error; err != nil {
		return err
	}
	*purchase = *ToPurchaseEntity(purchaseModel)
	return nil
}

func (t *ledgerTx) CreateInvestment(investment *entity.Investment) error {
	investmentModel := ToInvestmentModel(investment)
	if investmentModel.ID == "" {
		investmentModel.ID = uuid.New().String()
	}
	if err := t.db.Create(investmentModel).Error; err != nil {
		return err
	}
	*investment = *ToInvestmentEntity(investmentModel)
	return nil
}

func (t *ledgerTx) CreateEarnings(earnings []*entity.Earning) error {
	for _, earning := range earnings {
		earningModel := ToEarningModel(earning)
		if earningModel.ID == "" {
			earningModel.ID = uuid.New().String()
		}
		if err := t.db.Create(earningModel).Error; err != nil {
			return err
		}
		*earning = *ToEarningEntity(earningModel)
	}
	return nil
}

func (t *ledgerTx) CreatePlatformRevenue(revenue *entity.PlatformRevenue) error {
	revenueModel := ToPlatformRevenueModel(revenue)
	if revenueModel.ID == "" {
		revenueModel.ID = uuid.New().String()
	}
	if err := t.db.Create(revenueModel).Error; err != nil {
		return err
	}
	revenue.ID = revenueModel.ID
	revenue.CreatedAt = revenueModel.CreatedAt
	return nil
}

// AddRevenue must run after LockContent so the read-modify-write is not lost.
func (t *ledgerTx) AddRevenue(contentID string, amount money.Amount) (money.Amount, error) {
	var contentModel model.ContentModel
	if err := t.db.Select("id", "accumulated_revenue").Where("id = ?", contentID).First(&contentModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return money.Amount{}, apperr.NotFound("content not found")
		}
		return money.Amount{}, err
	}

	total := contentModel.AccumulatedRevenue.Add(amount)
	if err := t.db.Model(&model.ContentModel{}).Where("id = ?", contentID).
		UpdateColumn("accumulated_revenue", total).Error; err != nil {
		return money.Amount{}, err
	}
	return total, nil
}

func (t *ledgerTx) UnclaimedEarnings(beneficiaryID, contentID string) ([]*entity.Earning, error) {
	var earningModels []model.EarningModel
	if err := t.db.Where("beneficiary_id = ? AND content_id = ? AND claimed = ?", beneficiaryID, contentID, false).
		Order("created_at ASC").Find(&earningModels).Error; err != nil {
		return nil, err
	}

	earnings := make([]*entity.Earning, len(earningModels))
	for i := range earningModels {
		earnings[i] = ToEarningEntity(&earningModels[i])
	}
	return earnings, nil
}

func (t *ledgerTx) MarkClaimed(earningIDs []string, at time.Time) error {
	if len(earningIDs) == 0 {
		return nil
	}
	result := t.db.Model(&model.EarningModel{}).
		Where("id IN ? AND claimed = ?", earningIDs, false).
		Updates(map[string]interface{}{"claimed": true, "claimed_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(earningIDs)) {
		return apperr.Conflict("earnings were claimed concurrently")
	}
	return nil
}

func (t *ledgerTx) AddClaimed(investmentID string, amount money.Amount) error {
	var investmentModel model.InvestmentModel
	if err := t.db.Select("id", "claimed_earnings").Where("id = ?", investmentID).First(&investmentModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("investment not found")
		}
		return err
	}
	return t.db.Model(&model.InvestmentModel{}).Where("id = ?", investmentID).
		UpdateColumn("claimed_earnings", investmentModel.ClaimedEarnings.Add(amount)).Error
}
