package usecase

import (
	"reelshare/pkg/apperr"
	"reelshare/pkg/money"
	"reelshare/services/film/internal/entity"
)

// HolderShare is one investor's part of the investor pool.
type HolderShare struct {
	InvestmentID string
	InvestorID   string
	Shares       int64
	Amount       money.Amount
}

// Distribution is the split of one settled payment. Creator, Platform and the
// holder amounts always add up to Total.
type Distribution struct {
	Total    money.Amount
	Platform money.Amount
	Pool     money.Amount
	Creator  money.Amount
	Holders  []HolderShare
}

// Split divides amount by the content's percentages. The investor pool is paid
// pro rata to holders over TotalShares; the unsold fraction and rounding dust
// stay with the creator.
func Split(content *entity.Content, amount money.Amount, holders []entity.Holder) (*Distribution, error) {
	if err := content.ValidateSplit(); err != nil {
		return nil, err
	}
	if amount.Sign() < 0 {
		return nil, apperr.Validation("amount must not be negative")
	}

	d := &Distribution{
		Total:    amount,
		Platform: amount.MulDiv(int64(content.PlatformFee), 100),
		Pool:     amount.MulDiv(int64(content.InvestorShare), 100),
	}

	var held int64
	paid := money.Amount{}
	if content.TotalShares > 0 {
		for _, h := range holders {
			if h.Shares <= 0 {
				continue
			}
			held += h.Shares
			share := d.Pool.MulDiv(h.Shares, content.TotalShares)
			paid = paid.Add(share)
			d.Holders = append(d.Holders, HolderShare{
				InvestmentID: h.InvestmentID,
				InvestorID:   h.InvestorID,
				Shares:       h.Shares,
				Amount:       share,
			})
		}
	}
	if held > content.TotalShares {
		return nil, apperr.New(apperr.KindInternal, "holders own %d shares of %d", held, content.TotalShares)
	}

	d.Creator = amount.Sub(d.Platform).Sub(paid)
	return d, nil
}
