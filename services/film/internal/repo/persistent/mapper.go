package persistent

import (
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/model"
)

func ToContentEntity(m *model.ContentModel) *entity.Content {
	if m == nil {
		return nil
	}

	content := &entity.Content{
		ID:                 m.ID,
		ProducerID:         m.ProducerID,
		Title:              m.Title,
		Description:        m.Description,
		Genre:              m.Genre,
		Duration:           m.Duration,
		ReleaseDate:        m.ReleaseDate,
		MediaKey:           m.MediaKey,
		ContentHash:        m.ContentHash,
		Network:            m.Network,
		ChainContentID:     m.ChainContentID,
		DirectPrice:        m.DirectPrice,
		NFTPrice:           m.NFTPrice,
		PricePerShare:      m.PricePerShare,
		TotalShares:        m.TotalShares,
		AvailableShares:    m.AvailableShares,
		CreatorShare:       m.CreatorShare,
		InvestorShare:      m.InvestorShare,
		PlatformFee:        m.PlatformFee,
		AccumulatedRevenue: m.AccumulatedRevenue,
		IsActive:           m.IsActive,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.TokenID != nil {
		content.TokenID = *m.TokenID
	}
	return content
}

func ToContentModel(e *entity.Content) *model.ContentModel {
	if e == nil {
		return nil
	}

	m := &model.ContentModel{
		ID:                 e.ID,
		ProducerID:         e.ProducerID,
		Title:              e.Title,
		Description:        e.Description,
		Genre:              e.Genre,
		Duration:           e.Duration,
		ReleaseDate:        e.ReleaseDate,
		MediaKey:           e.MediaKey,
		ContentHash:        e.ContentHash,
		Network:            e.Network,
		ChainContentID:     e.ChainContentID,
		DirectPrice:        e.DirectPrice,
		NFTPrice:           e.NFTPrice,
		PricePerShare:      e.PricePerShare,
		TotalShares:        e.TotalShares,
		AvailableShares:    e.AvailableShares,
		CreatorShare:       e.CreatorShare,
		InvestorShare:      e.InvestorShare,
		PlatformFee:        e.PlatformFee,
		AccumulatedRevenue: e.AccumulatedRevenue,
		IsActive:           e.IsActive,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if e.TokenID != "" {
		tokenID := e.TokenID
		m.TokenID = &tokenID
	}
	return m
}

func ToPurchaseEntity(m *model.PurchaseModel) *entity.Purchase {
	if m == nil {
		return nil
	}

	return &entity.Purchase{
		ID:            m.ID,
		BuyerID:       m.BuyerID,
		ContentID:     m.ContentID,
		Type:          entity.PurchaseType(m.Type),
		Network:       m.Network,
		Price:         m.Price,
		ChainAmount:   m.ChainAmount,
		ApproveTxHash: m.ApproveTxHash,
		TxHash:        m.TxHash,
		CreatedAt:     m.CreatedAt,
	}
}

func ToPurchaseModel(e *entity.Purchase) *model.PurchaseModel {
	if e == nil {
		return nil
	}

	return &model.PurchaseModel{
		ID:            e.ID,
		BuyerID:       e.BuyerID,
		ContentID:     e.ContentID,
		Type:          string(e.Type),
		Network:       e.Network,
		Price:         e.Price,
		ChainAmount:   e.ChainAmount,
		ApproveTxHash: e.ApproveTxHash,
		TxHash:        e.TxHash,
		CreatedAt:     e.CreatedAt,
	}
}

func ToInvestmentEntity(m *model.InvestmentModel) *entity.Investment {
	if m == nil {
		return nil
	}

	return &entity.Investment{
		ID:              m.ID,
		InvestorID:      m.InvestorID,
		ContentID:       m.ContentID,
		PurchaseID:      m.PurchaseID,
		Shares:          m.Shares,
		AmountInvested:  m.AmountInvested,
		TxHash:          m.TxHash,
		ClaimedEarnings: m.ClaimedEarnings,
		CreatedAt:       m.CreatedAt,
	}
}

func ToInvestmentModel(e *entity.Investment) *model.InvestmentModel {
	if e == nil {
		return nil
	}

	return &model.InvestmentModel{
		ID:              e.ID,
		InvestorID:      e.InvestorID,
		ContentID:       e.ContentID,
		PurchaseID:      e.PurchaseID,
		Shares:          e.Shares,
		AmountInvested:  e.AmountInvested,
		TxHash:          e.TxHash,
		ClaimedEarnings: e.ClaimedEarnings,
		CreatedAt:       e.CreatedAt,
	}
}

func ToEarningEntity(m *model.EarningModel) *entity.Earning {
	if m == nil {
		return nil
	}

	earning := &entity.Earning{
		ID:            m.ID,
		BeneficiaryID: m.BeneficiaryID,
		ContentID:     m.ContentID,
		Source:        entity.EarningSource(m.Source),
		Amount:        m.Amount,
		TxHash:        m.TxHash,
		Claimed:       m.Claimed,
		ClaimedAt:     m.ClaimedAt,
		CreatedAt:     m.CreatedAt,
	}
	if m.PurchaseID != nil {
		earning.PurchaseID = *m.PurchaseID
	}
	if m.InvestmentID != nil {
		earning.InvestmentID = *m.InvestmentID
	}
	return earning
}

func ToEarningModel(e *entity.Earning) *model.EarningModel {
	if e == nil {
		return nil
	}

	m := &model.EarningModel{
		ID:            e.ID,
		BeneficiaryID: e.BeneficiaryID,
		ContentID:     e.ContentID,
		Source:        string(e.Source),
		Amount:        e.Amount,
		TxHash:        e.TxHash,
		Claimed:       e.Claimed,
		ClaimedAt:     e.ClaimedAt,
		CreatedAt:     e.CreatedAt,
	}
	if e.PurchaseID != "" {
		purchaseID := e.PurchaseID
		m.PurchaseID = &purchaseID
	}
	if e.InvestmentID != "" {
		investmentID := e.InvestmentID
		m.InvestmentID = &investmentID
	}
	return m
}

func ToPlatformRevenueModel(e *entity.PlatformRevenue) *model.PlatformRevenueModel {
	if e == nil {
		return nil
	}

	return &model.PlatformRevenueModel{
		ID:         e.ID,
		ContentID:  e.ContentID,
		PurchaseID: e.PurchaseID,
		Amount:     e.Amount,
		CreatedAt:  e.CreatedAt,
	}
}

func ToUnsettledPaymentModel(e *entity.UnsettledPayment) *model.UnsettledPaymentModel {
	if e == nil {
		return nil
	}

	return &model.UnsettledPaymentModel{
		ID:        e.ID,
		BuyerID:   e.BuyerID,
		ContentID: e.ContentID,
		Type:      string(e.Type),
		Shares:    e.Shares,
		Network:   e.Network,
		TxHash:    e.TxHash,
		Amount:    e.Amount,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
}

func ToUnsettledPaymentEntity(m *model.UnsettledPaymentModel) *entity.UnsettledPayment {
	if m == nil {
		return nil
	}

	return &entity.UnsettledPayment{
		ID:        m.ID,
		BuyerID:   m.BuyerID,
		ContentID: m.ContentID,
		Type:      entity.PurchaseType(m.Type),
		Shares:    m.Shares,
		Network:   m.Network,
		TxHash:    m.TxHash,
		Amount:    m.Amount,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
	}
}

func ToPayoutEntity(m *model.PayoutModel) *entity.Payout {
	if m == nil {
		return nil
	}

	return &entity.Payout{
		ID:            m.ID,
		BeneficiaryID: m.BeneficiaryID,
		ContentID:     m.ContentID,
		Network:       m.Network,
		Amount:        m.Amount,
		ChainAmount:   m.ChainAmount,
		ToAddress:     m.ToAddress,
		TxHash:        m.TxHash,
		Status:        entity.PayoutStatus(m.Status),
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func ToPayoutModel(e *entity.Payout) *model.PayoutModel {
	if e == nil {
		return nil
	}

	return &model.PayoutModel{
		ID:            e.ID,
		BeneficiaryID: e.BeneficiaryID,
		ContentID:     e.ContentID,
		Network:       e.Network,
		Amount:        e.Amount,
		ChainAmount:   e.ChainAmount,
		ToAddress:     e.ToAddress,
		TxHash:        e.TxHash,
		Status:        string(e.Status),
		Error:         e.Error,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func ToUserEntity(m *model.UserModel) *entity.User {
	if m == nil {
		return nil
	}

	user := &entity.User{
		ID:               m.ID,
		Role:             m.Role,
		CustodialAddress: m.CustodialAddress,
		IsActive:         m.IsActive,
	}
	if m.WalletAddress != nil {
		user.WalletAddress = *m.WalletAddress
	}
	return user
}
