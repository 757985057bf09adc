package usecase

import (
	"testing"

	"reelshare/pkg/apperr"
	"reelshare/pkg/money"
	"reelshare/services/film/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitContent(creator, investor, platform int, totalShares int64) *entity.Content {
	return &entity.Content{
		CreatorShare:  creator,
		InvestorShare: investor,
		PlatformFee:   platform,
		TotalShares:   totalShares,
	}
}

func holdersTotal(d *Distribution) money.Amount {
	total := money.Amount{}
	for _, h := range d.Holders {
		total = total.Add(h.Amount)
	}
	return total
}

func TestSplit_RejectsPercentagesNotSummingTo100(t *testing.T) {
	for _, c := range []*entity.Content{
		splitContent(50, 30, 10, 100),
		splitContent(60, 30, 20, 100),
		splitContent(110, -20, 10, 100),
	} {
		_, err := Split(c, money.FromInt64(1000), nil)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "split %d/%d/%d", c.CreatorShare, c.InvestorShare, c.PlatformFee)
	}
}

func TestSplit_ProRataWithDustToCreator(t *testing.T) {
	holders := []entity.Holder{
		{InvestmentID: "inv-a", InvestorID: "alice", Shares: 30},
		{InvestmentID: "inv-b", InvestorID: "bob", Shares: 60},
	}

	d, err := Split(splitContent(60, 30, 10, 100), money.FromInt64(1001), holders)
	require.NoError(t, err)

	assert.Equal(t, "100", d.Platform.String())
	assert.Equal(t, "300", d.Pool.String())
	require.Len(t, d.Holders, 2)
	assert.Equal(t, "90", d.Holders[0].Amount.String())
	assert.Equal(t, "180", d.Holders[1].Amount.String())
	// 10 unsold shares and the rounding remainder stay with the creator.
	assert.Equal(t, "631", d.Creator.String())
	assert.Equal(t, "1001", money.Sum(d.Platform, d.Creator, holdersTotal(d)).String())
}

func TestSplit_NoHoldersPoolGoesToCreator(t *testing.T) {
	d, err := Split(splitContent(60, 30, 10, 100), money.FromInt64(5_000_000), nil)
	require.NoError(t, err)

	assert.Equal(t, "500000", d.Platform.String())
	assert.Equal(t, "4500000", d.Creator.String())
	assert.Empty(t, d.Holders)
}

func TestSplit_ConservesEveryAmount(t *testing.T) {
	holders := []entity.Holder{
		{InvestmentID: "a", InvestorID: "a", Shares: 1},
		{InvestmentID: "b", InvestorID: "b", Shares: 2},
		{InvestmentID: "c", InvestorID: "c", Shares: 4},
	}
	content := splitContent(33, 34, 33, 7)

	for _, raw := range []string{"0", "1", "7", "99", "12345", "9007199254740993", "115792089237316195423570985008687907853269984665640564039457584007913129639935"} {
		amount := money.MustParse(raw)
		d, err := Split(content, amount, holders)
		require.NoError(t, err)
		assert.Equal(t, amount.String(), money.Sum(d.Platform, d.Creator, holdersTotal(d)).String(), raw)
		assert.True(t, d.Creator.Sign() >= 0, raw)
	}
}

func TestSplit_HolderSharesBeyondTotalFail(t *testing.T) {
	holders := []entity.Holder{{InvestmentID: "a", InvestorID: "a", Shares: 11}}
	_, err := Split(splitContent(60, 30, 10, 10), money.FromInt64(100), holders)
	assert.Error(t, err)
}

func TestSplit_NegativeAmount(t *testing.T) {
	_, err := Split(splitContent(60, 30, 10, 10), money.FromInt64(-1), nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
