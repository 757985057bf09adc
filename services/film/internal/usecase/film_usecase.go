package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/pkg/chain"
	"reelshare/pkg/logger"
	"reelshare/pkg/money"
	"reelshare/pkg/queue"
	"reelshare/pkg/s3"
	"reelshare/pkg/wallet"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/repo/persistent"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// MediaStorage stores film media and issues stream links.
type MediaStorage interface {
	UploadMedia(key string, file io.Reader, contentType string) (*s3.Upload, error)
	StreamURL(key string, ttl time.Duration) (string, error)
	DeleteFile(key string) error
}

type ViewPublisher interface {
	PublishView(event queue.ViewEvent) error
}

type UploadInput struct {
	Title         string
	Description   string
	Genre         string
	Duration      int64
	ReleaseDate   time.Time
	Network       string
	DirectPrice   string
	NFTPrice      string
	PricePerShare string
	TotalShares   int64
	CreatorShare  int
	InvestorShare int
	PlatformFee   int
	Media         io.Reader
	MediaName     string
	ContentType   string
}

type ResellResult struct {
	TxHash          string       `json:"tx_hash"`
	Royalty         money.Amount `json:"royalty"`
	RoyaltyReceiver string       `json:"royalty_receiver"`
}

type ClaimResult struct {
	ContentID string         `json:"content_id"`
	Amount    money.Amount   `json:"amount"`
	Payout    *entity.Payout `json:"payout,omitempty"`
}

type FilmUseCase interface {
	Upload(ctx context.Context, producerID string, in UploadInput) (*entity.Content, error)
	GetFilm(id string) (*entity.Content, error)
	Stream(ctx context.Context, userID, network, tokenID string) (string, error)
	RecordView(ctx context.Context, event queue.ViewEvent) error
	Resell(ctx context.Context, sellerID, contentID, buyerAddress, price string) (*ResellResult, error)
	Analytics(ctx context.Context, producerID, contentID string) (*entity.Analytics, error)
	ProducerRevenue(ctx context.Context, producerID string) ([]*entity.RevenueSummary, error)
	ClaimEarnings(ctx context.Context, userID, contentID string) (*ClaimResult, error)
}

type FilmConfig struct {
	SettlementDecimals uint8
	DefaultNetwork     string
	StreamURLTTL       time.Duration
	// Payouts sends claimed earnings from the platform wallet on chain.
	Payouts bool
}

type filmUseCase struct {
	contents persistent.ContentRepository
	users    persistent.UserRepository
	records  persistent.LedgerRepository
	ledger   *Ledger
	storage  MediaStorage
	views    ViewPublisher
	gateway  *chain.Gateway
	platform chain.Signer
	deriver  *wallet.Deriver
	cfg      FilmConfig
	logger   *logger.Logger
}

func NewFilmUseCase(
	contents persistent.ContentRepository,
	users persistent.UserRepository,
	records persistent.LedgerRepository,
	ledger *Ledger,
	storage MediaStorage,
	views ViewPublisher,
	gateway *chain.Gateway,
	platform chain.Signer,
	deriver *wallet.Deriver,
	cfg FilmConfig,
	logger *logger.Logger,
) FilmUseCase {
	if cfg.StreamURLTTL <= 0 {
		cfg.StreamURLTTL = 2 * time.Hour
	}
	return &filmUseCase{
		contents: contents,
		users:    users,
		records:  records,
		ledger:   ledger,
		storage:  storage,
		views:    views,
		gateway:  gateway,
		platform: platform,
		deriver:  deriver,
		cfg:      cfg,
		logger:   logger,
	}
}

func (uc *filmUseCase) network(name string) (*chain.Network, error) {
	if name == "" {
		name = uc.cfg.DefaultNetwork
	}
	return uc.gateway.Network(name)
}

func (uc *filmUseCase) parsePrice(field, value string) (money.Amount, error) {
	if strings.TrimSpace(value) == "" {
		return money.Amount{}, nil
	}
	amount, err := money.ParseDecimal(strings.TrimSpace(value), uc.cfg.SettlementDecimals)
	if err != nil {
		return money.Amount{}, apperr.Validation("%s: %v", field, err)
	}
	return amount, nil
}

func (uc *filmUseCase) Upload(ctx context.Context, producerID string, in UploadInput) (*entity.Content, error) {
	producer, err := uc.users.GetByID(producerID)
	if err != nil {
		return nil, err
	}
	if !producer.IsProducer() || !producer.IsActive {
		return nil, apperr.Authorization("only producers can upload films")
	}
	if uc.platform == nil {
		return nil, apperr.New(apperr.KindInternal, "platform wallet is not configured")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.Media == nil {
		return nil, apperr.Validation("media file is required")
	}
	if err := entity.ValidateSplit(in.CreatorShare, in.InvestorShare, in.PlatformFee); err != nil {
		return nil, err
	}
	if in.TotalShares < 0 {
		return nil, apperr.Validation("total shares must not be negative")
	}

	directPrice, err := uc.parsePrice("direct_price", in.DirectPrice)
	if err != nil {
		return nil, err
	}
	nftPrice, err := uc.parsePrice("nft_price", in.NFTPrice)
	if err != nil {
		return nil, err
	}
	pricePerShare, err := uc.parsePrice("price_per_share", in.PricePerShare)
	if err != nil {
		return nil, err
	}
	if in.TotalShares > 0 && pricePerShare.Sign() == 0 {
		return nil, apperr.Validation("price_per_share is required when shares are offered")
	}

	n, err := uc.network(in.Network)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("films/%s/%s%s", producerID, uuid.New().String(), strings.ToLower(filepath.Ext(in.MediaName)))
	upload, err := uc.storage.UploadMedia(key, in.Media, in.ContentType)
	if err != nil {
		uc.logger.Error("Failed to upload media for producer %s: %v", producerID, err)
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}

	content := &entity.Content{
		ProducerID:      producerID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Genre:           in.Genre,
		Duration:        in.Duration,
		ReleaseDate:     in.ReleaseDate,
		MediaKey:        upload.Key,
		ContentHash:     upload.ContentHash,
		Network:         n.Name,
		DirectPrice:     directPrice,
		NFTPrice:        nftPrice,
		PricePerShare:   pricePerShare,
		TotalShares:     in.TotalShares,
		AvailableShares: in.TotalShares,
		CreatorShare:    in.CreatorShare,
		InvestorShare:   in.InvestorShare,
		PlatformFee:     in.PlatformFee,
		IsActive:        true,
	}
	if err := uc.register(ctx, n, content); err != nil {
		if delErr := uc.storage.DeleteFile(upload.Key); delErr != nil {
			uc.logger.Warn("Failed to remove media %s after failed registration: %v", upload.Key, delErr)
		}
		return nil, err
	}

	if err := uc.contents.Create(content); err != nil {
		uc.logger.Error("Failed to save content %s (chain id %s): %v", content.Title, content.ChainContentID, err)
		return nil, fmt.Errorf("failed to save content: %w", err)
	}
	uc.logger.Info("Producer %s uploaded content %s (chain id %s, token %s)", producerID, content.ID, content.ChainContentID, content.TokenID)
	return content, nil
}

// register creates the on-chain content record and, when the film is for
// sale, mints its token through the platform wallet.
func (uc *filmUseCase) register(ctx context.Context, n *chain.Network, content *entity.Content) error {
	contentID, _, err := uc.gateway.SubmitCreate(ctx, n.Name, uc.platform, content.Title, content.ContentHash)
	if err != nil {
		uc.logger.Error("Failed to register content %s on %s: %v", content.Title, n.Name, err)
		return err
	}
	content.ChainContentID = contentID.String()

	listPrice := content.DirectPrice
	if listPrice.Sign() == 0 {
		listPrice = content.NFTPrice
	}
	if listPrice.Sign() == 0 {
		return nil
	}

	decimals, err := uc.gateway.TokenDecimals(ctx, n.Name, n.PaymentToken)
	if err != nil {
		return err
	}
	tokenID, _, err := uc.gateway.SubmitFilm(ctx, n.Name, uc.platform, chain.FilmParams{
		Title:       content.Title,
		Description: content.Description,
		Genre:       content.Genre,
		Duration:    content.Duration,
		ReleaseDate: content.ReleaseDate,
		ContentHash: content.ContentHash,
		Price:       money.Rescale(listPrice, uc.cfg.SettlementDecimals, decimals).Big(),
	})
	if err != nil {
		uc.logger.Error("Failed to mint film for content %s on %s (chain id %s left without token): %v", content.Title, n.Name, content.ChainContentID, err)
		return err
	}
	content.TokenID = tokenID.String()

	hash, err := uc.gateway.ApproveFilm(ctx, n.Name, uc.platform, tokenID)
	if err == nil {
		_, err = uc.gateway.WaitReceipt(ctx, n.Name, hash, "approveFilm")
	}
	if err != nil {
		uc.logger.Warn("Film %s minted but not approved: %v", content.TokenID, err)
	}
	return nil
}

func (uc *filmUseCase) GetFilm(id string) (*entity.Content, error) {
	content, err := uc.contents.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !content.IsActive {
		return nil, apperr.NotFound("content not found")
	}
	return content, nil
}

func (uc *filmUseCase) Stream(ctx context.Context, userID, network, tokenID string) (string, error) {
	n, err := uc.network(network)
	if err != nil {
		return "", err
	}
	token, err := parseID(tokenID)
	if err != nil {
		return "", err
	}
	content, err := uc.contents.GetByToken(n.Name, token.String())
	if err != nil {
		return "", err
	}
	user, err := uc.users.GetByID(userID)
	if err != nil {
		return "", err
	}

	allowed, err := uc.canStream(ctx, user, content, token)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", apperr.Authorization("purchase this film to stream it")
	}

	url, err := uc.storage.StreamURL(content.MediaKey, uc.cfg.StreamURLTTL)
	if err != nil {
		uc.logger.Error("Failed to sign stream url for %s: %v", content.ID, err)
		return "", fmt.Errorf("failed to create stream url: %w", err)
	}

	if uc.views != nil && content.ChainContentID != "" {
		event := queue.ViewEvent{
			ContentID:  content.ID,
			Network:    content.Network,
			ChainID:    content.ChainContentID,
			ViewerID:   userID,
			OccurredAt: time.Now(),
		}
		if err := uc.views.PublishView(event); err != nil {
			uc.logger.Warn("Failed to enqueue view of %s: %v", content.ID, err)
		}
	}
	return url, nil
}

func (uc *filmUseCase) canStream(ctx context.Context, user *entity.User, content *entity.Content, tokenID *big.Int) (bool, error) {
	if content.ProducerID == user.ID {
		return true, nil
	}
	purchased, err := uc.records.HasPurchase(ctx, user.ID, content.ID, entity.PurchaseDirect, entity.PurchaseNFT)
	if err != nil {
		return false, err
	}
	if purchased {
		return true, nil
	}
	return uc.gateway.VerifyOwnership(ctx, content.Network, tokenID, user.ActiveAddress())
}

func (uc *filmUseCase) RecordView(ctx context.Context, event queue.ViewEvent) error {
	if uc.platform == nil {
		return apperr.New(apperr.KindInternal, "platform wallet is not configured")
	}
	contentID, err := parseID(event.ChainID)
	if err != nil {
		return err
	}
	hash, err := uc.gateway.RecordView(ctx, event.Network, uc.platform, contentID)
	if err != nil {
		return err
	}
	if _, err := uc.gateway.WaitReceipt(ctx, event.Network, hash, "recordView"); err != nil {
		return err
	}
	return nil
}

func (uc *filmUseCase) Resell(ctx context.Context, sellerID, contentID, buyerAddress, price string) (*ResellResult, error) {
	seller, err := uc.users.GetByID(sellerID)
	if err != nil {
		return nil, err
	}
	if !seller.Custodial() {
		return nil, apperr.Validation("wallet-connected owners transfer from their own wallet")
	}
	if !common.IsHexAddress(buyerAddress) {
		return nil, apperr.Validation("invalid buyer address")
	}
	content, err := uc.GetFilm(contentID)
	if err != nil {
		return nil, err
	}
	if !content.IsMinted() {
		return nil, apperr.Validation("content has no film token")
	}
	salePrice, err := uc.parsePrice("price", price)
	if err != nil {
		return nil, err
	}
	if salePrice.Sign() <= 0 {
		return nil, apperr.Validation("price must be positive")
	}

	n, err := uc.gateway.Network(content.Network)
	if err != nil {
		return nil, err
	}
	tokenID, err := parseID(content.TokenID)
	if err != nil {
		return nil, err
	}
	w, err := uc.deriver.Derive(seller.ID)
	if err != nil {
		return nil, err
	}
	owns, err := uc.gateway.VerifyOwnership(ctx, n.Name, tokenID, w.Address.Hex())
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, apperr.Authorization("you do not own this film")
	}

	decimals, err := uc.gateway.TokenDecimals(ctx, n.Name, n.PaymentToken)
	if err != nil {
		return nil, err
	}
	chainPrice := money.Rescale(salePrice, uc.cfg.SettlementDecimals, decimals)
	hash, err := uc.gateway.TransferWithRoyalty(ctx, n.Name, w.Signer, tokenID, common.HexToAddress(buyerAddress), chainPrice.Big())
	if err != nil {
		return nil, err
	}
	if _, err := uc.gateway.WaitReceipt(ctx, n.Name, hash, "transferWithRoyalty"); err != nil {
		return nil, err
	}

	result := &ResellResult{TxHash: hash.Hex()}
	receiver, royalty, err := uc.gateway.RoyaltyInfo(ctx, n.Name, tokenID, chainPrice.Big())
	if err != nil {
		uc.logger.Error("Resale %s confirmed but royalty lookup failed: %v", hash.Hex(), err)
		return result, nil
	}
	result.RoyaltyReceiver = receiver.Hex()
	result.Royalty = money.Rescale(money.NewAmount(royalty), decimals, uc.cfg.SettlementDecimals)
	if result.Royalty.Sign() > 0 {
		earning := &entity.Earning{
			BeneficiaryID: content.ProducerID,
			ContentID:     content.ID,
			Source:        entity.SourceRoyalty,
			Amount:        result.Royalty,
			TxHash:        hash.Hex(),
		}
		if err := uc.records.CreateEarning(ctx, earning); err != nil {
			uc.logger.Error("Failed to credit royalty for resale %s: %v", hash.Hex(), err)
			return nil, err
		}
	}
	uc.logger.Info("User %s resold film %s to %s (royalty %s)", sellerID, content.TokenID, wallet.ShortAddress(buyerAddress), result.Royalty)
	return result, nil
}

func (uc *filmUseCase) Analytics(ctx context.Context, producerID, contentID string) (*entity.Analytics, error) {
	content, err := uc.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if content.ProducerID != producerID {
		return nil, apperr.Authorization("only the producer can view analytics")
	}

	purchases, err := uc.records.PurchasesByContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	investments, err := uc.records.InvestmentsByContent(ctx, contentID)
	if err != nil {
		return nil, err
	}

	analytics := &entity.Analytics{
		ContentID:          content.ID,
		PurchasesByType:    make(map[entity.PurchaseType]int64),
		RevenueByType:      make(map[entity.PurchaseType]money.Amount),
		AccumulatedRevenue: content.AccumulatedRevenue,
		SharesSold:         content.SharesSold(),
		TotalShares:        content.TotalShares,
	}
	for _, p := range purchases {
		analytics.PurchasesByType[p.Type]++
		analytics.RevenueByType[p.Type] = analytics.RevenueByType[p.Type].Add(p.Price)
	}
	investors := make(map[string]struct{})
	for _, inv := range investments {
		investors[inv.InvestorID] = struct{}{}
	}
	analytics.Investors = len(investors)

	if chainID, err := parseID(content.ChainContentID); err == nil {
		record, err := uc.gateway.Content(ctx, content.Network, chainID)
		if err != nil {
			uc.logger.Warn("Failed to read on-chain views of %s: %v", content.ID, err)
		} else if record.Views != nil {
			views := record.Views.Int64()
			analytics.OnChainViews = &views
		}
	}
	return analytics, nil
}

func (uc *filmUseCase) ProducerRevenue(ctx context.Context, producerID string) ([]*entity.RevenueSummary, error) {
	contents, err := uc.contents.ListByProducer(producerID)
	if err != nil {
		return nil, err
	}
	earnings, err := uc.records.EarningsByBeneficiary(ctx, producerID)
	if err != nil {
		return nil, err
	}

	byContent := make(map[string]*entity.RevenueSummary, len(contents))
	summaries := make([]*entity.RevenueSummary, 0, len(contents))
	for _, c := range contents {
		s := &entity.RevenueSummary{
			ContentID:          c.ID,
			Title:              c.Title,
			AccumulatedRevenue: c.AccumulatedRevenue,
			BySource:           make(map[entity.EarningSource]money.Amount),
		}
		byContent[c.ID] = s
		summaries = append(summaries, s)
	}
	for _, e := range earnings {
		s, ok := byContent[e.ContentID]
		if !ok {
			// Earnings as an investor in someone else's content.
			continue
		}
		if e.Claimed {
			s.Claimed = s.Claimed.Add(e.Amount)
		} else {
			s.Unclaimed = s.Unclaimed.Add(e.Amount)
		}
		s.BySource[e.Source] = s.BySource[e.Source].Add(e.Amount)
	}
	return summaries, nil
}

func (uc *filmUseCase) ClaimEarnings(ctx context.Context, userID, contentID string) (*ClaimResult, error) {
	content, err := uc.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	amount, err := uc.ledger.ClaimEarnings(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}
	result := &ClaimResult{ContentID: contentID, Amount: amount}
	if amount.Sign() == 0 || !uc.cfg.Payouts || uc.platform == nil {
		return result, nil
	}

	payout, err := uc.payout(ctx, userID, content, amount)
	if err != nil {
		uc.logger.Error("Payout of %s to user %s failed: %v", amount, userID, err)
	}
	result.Payout = payout
	return result, nil
}

// payout transfers claimed earnings from the platform wallet. The transfer is
// recorded before it is sent and never retried.
func (uc *filmUseCase) payout(ctx context.Context, userID string, content *entity.Content, amount money.Amount) (*entity.Payout, error) {
	user, err := uc.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	to := user.ActiveAddress()
	if !common.IsHexAddress(to) {
		return nil, apperr.Validation("user has no payout address")
	}
	n, err := uc.gateway.Network(content.Network)
	if err != nil {
		return nil, err
	}
	decimals, err := uc.gateway.TokenDecimals(ctx, n.Name, n.PaymentToken)
	if err != nil {
		return nil, err
	}
	chainAmount := money.Rescale(amount, uc.cfg.SettlementDecimals, decimals)
	if chainAmount.Sign() == 0 {
		return nil, apperr.Validation("claimed amount is below the smallest unit of the payment token")
	}

	payout := &entity.Payout{
		BeneficiaryID: userID,
		ContentID:     content.ID,
		Network:       n.Name,
		Amount:        amount,
		ChainAmount:   chainAmount,
		ToAddress:     to,
		Status:        entity.PayoutPending,
	}
	if err := uc.records.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}

	hash, err := uc.gateway.Transfer(ctx, n.Name, uc.platform, common.HexToAddress(to), chainAmount.Big())
	if err == nil {
		payout.TxHash = hash.Hex()
		_, err = uc.gateway.WaitReceipt(ctx, n.Name, hash, "transfer")
	}
	switch {
	case err == nil:
		payout.Status = entity.PayoutSent
	case apperr.Is(err, apperr.KindUnknownOutcome):
		payout.Status = entity.PayoutUnknown
	default:
		payout.Status = entity.PayoutFailed
	}
	var txErr *chain.TxError
	if errors.As(err, &txErr) && txErr.HasHash() {
		payout.TxHash = txErr.Hash.Hex()
	}
	if err != nil {
		payout.Error = err.Error()
	}
	if updErr := uc.records.UpdatePayout(ctx, payout); updErr != nil {
		uc.logger.Error("Failed to update payout %s: %v", payout.ID, updErr)
	}
	return payout, err
}
