package usecase

import (
	"context"
	"errors"
	"math/big"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/pkg/chain"
	"reelshare/pkg/logger"
	"reelshare/pkg/money"
	"reelshare/pkg/wallet"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/repo/cache"
	"reelshare/services/film/internal/repo/persistent"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// PurchaseUseCase drives a purchase from quote to settlement. State changes
// on chain are never retried automatically; an unknown outcome leaves the
// session where it was with the transaction hash recorded.
type PurchaseUseCase interface {
	Quote(ctx context.Context, buyerID string, req entity.PurchaseRequest) (*entity.Session, error)
	Get(ctx context.Context, buyerID, sessionID string) (*entity.Session, error)
	Approve(ctx context.Context, buyerID, sessionID string) (*entity.Session, error)
	Purchase(ctx context.Context, buyerID, sessionID string) (*entity.Session, error)
	Refresh(ctx context.Context, buyerID, sessionID string) (*entity.Session, error)
	Cancel(ctx context.Context, buyerID, sessionID string) (*entity.Session, error)
	Confirm(ctx context.Context, buyerID, sessionID, approveTxHash, purchaseTxHash string) (*entity.Session, error)
	Run(ctx context.Context, buyerID string, req entity.PurchaseRequest) (*entity.Session, error)
}

type OrchestratorConfig struct {
	SettlementDecimals uint8
	QuoteTTL           time.Duration
	// InFlightTimeout bounds how long an in-flight marker blocks the session
	// if the process handling it dies.
	InFlightTimeout time.Duration
}

type orchestrator struct {
	contents persistent.ContentRepository
	users    persistent.UserRepository
	sessions cache.SessionStore
	gateway  *chain.Gateway
	deriver  *wallet.Deriver
	ledger   *Ledger
	cfg      OrchestratorConfig
	logger   *logger.Logger
}

func NewOrchestrator(
	contents persistent.ContentRepository,
	users persistent.UserRepository,
	sessions cache.SessionStore,
	gateway *chain.Gateway,
	deriver *wallet.Deriver,
	ledger *Ledger,
	cfg OrchestratorConfig,
	logger *logger.Logger,
) PurchaseUseCase {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = 30 * time.Minute
	}
	if cfg.InFlightTimeout <= 0 {
		cfg.InFlightTimeout = 5 * time.Minute
	}
	return &orchestrator{
		contents: contents,
		users:    users,
		sessions: sessions,
		gateway:  gateway,
		deriver:  deriver,
		ledger:   ledger,
		cfg:      cfg,
		logger:   logger,
	}
}

func (o *orchestrator) Quote(ctx context.Context, buyerID string, req entity.PurchaseRequest) (*entity.Session, error) {
	if req == nil || !req.Type().Valid() {
		return nil, apperr.Validation("unknown purchase type")
	}
	buyer, err := o.users.GetByID(buyerID)
	if err != nil {
		return nil, err
	}
	if !buyer.IsActive {
		return nil, apperr.Authorization("account is deactivated")
	}
	content, err := o.contents.GetByID(req.Content())
	if err != nil {
		return nil, err
	}
	if !content.IsActive {
		return nil, apperr.NotFound("content not found")
	}

	price, shares, err := quotePrice(content, req)
	if err != nil {
		return nil, err
	}

	n, err := o.gateway.Network(content.Network)
	if err != nil {
		return nil, err
	}
	decimals, err := o.gateway.TokenDecimals(ctx, n.Name, n.PaymentToken)
	if err != nil {
		return nil, err
	}
	chainAmount := money.Rescale(price, o.cfg.SettlementDecimals, decimals)
	if chainAmount.Sign() <= 0 {
		return nil, apperr.Validation("price %s is below the smallest unit of the payment token", price)
	}
	// The ledger settles what the chain is paid, not the listed price.
	price = money.Rescale(chainAmount, decimals, o.cfg.SettlementDecimals)

	payer := buyer.WalletAddress
	if buyer.Custodial() {
		w, err := o.deriver.Derive(buyer.ID)
		if err != nil {
			return nil, err
		}
		payer = w.Address.Hex()
	}

	contract, method := entrypoint(n, req.Type())
	now := time.Now()
	session := &entity.Session{
		ID:            uuid.New().String(),
		BuyerID:       buyer.ID,
		Type:          req.Type(),
		ContentID:     content.ID,
		Shares:        shares,
		Network:       n.Name,
		Price:         price,
		ChainAmount:   chainAmount,
		TokenDecimals: decimals,
		PaymentToken:  n.PaymentToken.Hex(),
		Spender:       contract.Hex(),
		Contract:      contract.Hex(),
		Method:        method,
		Custodial:     buyer.Custodial(),
		PayerAddress:  payer,
		State:         entity.StateSelect,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     o.expiry(),
	}
	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	o.logger.Info("Quoted %s purchase of %s for user %s: %s (%s on %s)", session.Type, content.ID, buyer.ID, price, chainAmount, n.Name)
	return session, nil
}

func quotePrice(content *entity.Content, req entity.PurchaseRequest) (money.Amount, int64, error) {
	switch r := req.(type) {
	case entity.DirectPurchase:
		if !content.IsMinted() || content.DirectPrice.Sign() <= 0 {
			return money.Amount{}, 0, apperr.Validation("content is not for direct sale")
		}
		return content.DirectPrice, 0, nil
	case entity.NFTPurchase:
		if !content.IsMinted() || content.NFTPrice.Sign() <= 0 {
			return money.Amount{}, 0, apperr.Validation("content is not for sale as NFT")
		}
		return content.NFTPrice, 0, nil
	case entity.InvestmentPurchase:
		if content.TotalShares <= 0 || content.PricePerShare.Sign() <= 0 {
			return money.Amount{}, 0, apperr.Validation("content is not open for investment")
		}
		if content.AvailableShares == 0 {
			return money.Amount{}, 0, apperr.SoldOut("all shares of this content are sold")
		}
		if r.Shares < 1 || r.Shares > content.AvailableShares {
			return money.Amount{}, 0, apperr.Validation("shares must be between 1 and %d", content.AvailableShares)
		}
		return content.PricePerShare.MulInt(r.Shares), r.Shares, nil
	default:
		return money.Amount{}, 0, apperr.Validation("unknown purchase type")
	}
}

func entrypoint(n *chain.Network, t entity.PurchaseType) (common.Address, string) {
	switch t {
	case entity.PurchaseNFT:
		return n.FilmContract, "transferWithRoyalty"
	case entity.PurchaseInvestment:
		return n.ContentContract, "distributeRevenue"
	default:
		return n.FilmContract, "purchaseFilm"
	}
}

func (o *orchestrator) Get(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	s, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.BuyerID != buyerID {
		return nil, apperr.NotFound("purchase session not found or expired")
	}
	return s, nil
}

func (o *orchestrator) expiry() time.Time {
	return time.Now().Add(o.cfg.QuoteTTL)
}

// pin keeps the session from expiring while a purchase transaction may be
// outstanding; losing its hash would lose a payment.
func pin(s *entity.Session) {
	s.ExpiresAt = time.Time{}
}

func (o *orchestrator) inFlight(s *entity.Session) bool {
	return s.InFlight && time.Since(s.UpdatedAt) < o.cfg.InFlightTimeout
}

// claim moves the session into a working state under compare-and-set, so two
// concurrent requests cannot both broadcast.
func (o *orchestrator) claim(ctx context.Context, id string, fn func(s *entity.Session) error) (*entity.Session, error) {
	return o.sessions.Update(ctx, id, func(s *entity.Session) error {
		if s.State == entity.StateSettled {
			return apperr.Conflict("purchase is already settled")
		}
		if o.inFlight(s) {
			return apperr.Conflict("a transaction for this purchase is in flight")
		}
		if err := fn(s); err != nil {
			return err
		}
		s.InFlight = true
		s.LastError = ""
		return nil
	})
}

// release records the result of a working step. It is unconditional: the
// in-flight marker keeps other writers out.
func (o *orchestrator) release(ctx context.Context, id string, fn func(s *entity.Session)) (*entity.Session, error) {
	s, err := o.sessions.Update(ctx, id, func(s *entity.Session) error {
		fn(s)
		s.InFlight = false
		return nil
	})
	if err != nil {
		o.logger.Error("Failed to update purchase session %s: %v", id, err)
	}
	return s, err
}

func (o *orchestrator) resetToSelect(s *entity.Session, reason error) {
	s.State = entity.StateSelect
	s.ApproveTxHash = ""
	s.PurchaseTxHash = ""
	s.ExpiresAt = o.expiry()
	if reason != nil {
		s.LastError = reason.Error()
	}
}

func (o *orchestrator) custodialSigner(s *entity.Session) (chain.Signer, error) {
	w, err := o.deriver.Derive(s.BuyerID)
	if err != nil {
		return nil, err
	}
	if !chain.SameAddress(w.Address.Hex(), s.PayerAddress) {
		return nil, apperr.New(apperr.KindInternal, "derived wallet does not match the quoted payer")
	}
	return w.Signer, nil
}

func (o *orchestrator) Approve(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	s, err := o.Get(ctx, buyerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Custodial {
		return nil, apperr.Validation("wallet-connected buyers approve from their own wallet and call confirm")
	}
	switch {
	case s.State == entity.StatePurchasing:
		return s, nil
	case s.State == entity.StateSettled:
		return nil, apperr.Conflict("purchase is already settled")
	case s.State == entity.StateApproving && !o.inFlight(s):
		return nil, apperr.Conflict("approval %s has not resolved, refresh the session", s.ApproveTxHash)
	}

	signer, err := o.custodialSigner(s)
	if err != nil {
		return nil, err
	}
	payer := common.HexToAddress(s.PayerAddress)
	token := common.HexToAddress(s.PaymentToken)
	amount := s.ChainAmount.Big()

	balance, err := o.gateway.TokenBalance(ctx, s.Network, token, payer)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, apperr.InsufficientBalance("balance %s is below the quoted %s", balance, amount)
	}

	allowance, err := o.gateway.Allowance(ctx, s.Network, token, payer, common.HexToAddress(s.Spender))
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(amount) >= 0 {
		return o.sessions.Update(ctx, sessionID, func(cur *entity.Session) error {
			if cur.State != entity.StateSelect || o.inFlight(cur) {
				return apperr.Conflict("session is %s", cur.State)
			}
			cur.State = entity.StatePurchasing
			cur.LastError = ""
			return nil
		})
	}

	if _, err := o.claim(ctx, sessionID, func(cur *entity.Session) error {
		if cur.State != entity.StateSelect {
			return apperr.Conflict("session is %s", cur.State)
		}
		cur.State = entity.StateApproving
		return nil
	}); err != nil {
		return nil, err
	}

	hash, err := o.gateway.Approve(ctx, s.Network, signer, common.HexToAddress(s.Spender), amount)
	if err != nil {
		return o.sendFailed(ctx, sessionID, entity.StateApproving, err)
	}
	if _, err := o.sessions.Update(ctx, sessionID, func(cur *entity.Session) error {
		cur.ApproveTxHash = hash.Hex()
		return nil
	}); err != nil {
		o.logger.Error("Failed to record approval %s on session %s: %v", hash.Hex(), sessionID, err)
	}

	_, err = o.gateway.WaitReceipt(ctx, s.Network, hash, "approve")
	return o.approvalResolved(ctx, sessionID, err)
}

// sendFailed handles a write that returned an error. A broadcast with an
// unknown outcome keeps the session in state with its hash; anything else is
// a definite failure.
func (o *orchestrator) sendFailed(ctx context.Context, sessionID string, state entity.SessionState, err error) (*entity.Session, error) {
	var txErr *chain.TxError
	if errors.As(err, &txErr) && txErr.Outcome == chain.OutcomeUnknown && txErr.HasHash() {
		hash := txErr.Hash.Hex()
		o.release(ctx, sessionID, func(s *entity.Session) {
			s.State = state
			if state == entity.StateApproving {
				s.ApproveTxHash = hash
			} else {
				s.PurchaseTxHash = hash
			}
			s.LastError = err.Error()
		})
		return nil, err
	}
	o.release(ctx, sessionID, func(s *entity.Session) { o.resetToSelect(s, err) })
	return nil, err
}

func (o *orchestrator) approvalResolved(ctx context.Context, sessionID string, waitErr error) (*entity.Session, error) {
	if waitErr == nil {
		return o.release(ctx, sessionID, func(s *entity.Session) {
			s.State = entity.StatePurchasing
			s.LastError = ""
		})
	}
	var txErr *chain.TxError
	if errors.As(waitErr, &txErr) && txErr.Outcome == chain.OutcomeUnknown {
		o.release(ctx, sessionID, func(s *entity.Session) { s.LastError = waitErr.Error() })
		return nil, waitErr
	}
	o.release(ctx, sessionID, func(s *entity.Session) { o.resetToSelect(s, waitErr) })
	return nil, waitErr
}

func (o *orchestrator) Purchase(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	s, err := o.Get(ctx, buyerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Custodial {
		return nil, apperr.Validation("wallet-connected buyers send the purchase themselves and call confirm")
	}
	if s.State == entity.StateSettled {
		return s, nil
	}

	if _, err := o.claim(ctx, sessionID, func(cur *entity.Session) error {
		if cur.State != entity.StatePurchasing {
			return apperr.Conflict("session is %s, approve first", cur.State)
		}
		if cur.PurchaseTxHash != "" {
			return apperr.Conflict("purchase %s has not resolved, refresh the session", cur.PurchaseTxHash)
		}
		pin(cur)
		return nil
	}); err != nil {
		return nil, err
	}

	signer, err := o.custodialSigner(s)
	if err != nil {
		o.release(ctx, sessionID, func(cur *entity.Session) {
			cur.ExpiresAt = o.expiry()
			cur.LastError = err.Error()
		})
		return nil, err
	}
	hash, err := o.sendPurchase(ctx, s, signer)
	if err != nil {
		return o.sendFailed(ctx, sessionID, entity.StatePurchasing, err)
	}
	s, err = o.sessions.Update(ctx, sessionID, func(cur *entity.Session) error {
		cur.PurchaseTxHash = hash.Hex()
		return nil
	})
	if err != nil {
		o.logger.Error("Failed to record purchase %s on session %s: %v", hash.Hex(), sessionID, err)
		return nil, err
	}

	_, err = o.gateway.WaitReceipt(ctx, s.Network, hash, s.Method)
	return o.purchaseResolved(ctx, s, err)
}

func (o *orchestrator) sendPurchase(ctx context.Context, s *entity.Session, signer chain.Signer) (common.Hash, error) {
	content, err := o.contents.GetByID(s.ContentID)
	if err != nil {
		return common.Hash{}, err
	}
	switch s.Type {
	case entity.PurchaseDirect:
		tokenID, err := parseID(content.TokenID)
		if err != nil {
			return common.Hash{}, err
		}
		return o.gateway.PurchaseFilm(ctx, s.Network, signer, tokenID)
	case entity.PurchaseNFT:
		tokenID, err := parseID(content.TokenID)
		if err != nil {
			return common.Hash{}, err
		}
		return o.gateway.TransferWithRoyalty(ctx, s.Network, signer, tokenID, common.HexToAddress(s.PayerAddress), s.ChainAmount.Big())
	default:
		contentID, err := parseID(content.ChainContentID)
		if err != nil {
			return common.Hash{}, err
		}
		return o.gateway.DistributeRevenue(ctx, s.Network, signer, contentID)
	}
}

// purchaseResolved applies the receipt outcome of the purchase transaction.
// s must carry the purchase hash.
func (o *orchestrator) purchaseResolved(ctx context.Context, s *entity.Session, waitErr error) (*entity.Session, error) {
	if waitErr != nil {
		var txErr *chain.TxError
		if errors.As(waitErr, &txErr) && txErr.Outcome == chain.OutcomeUnknown {
			o.release(ctx, s.ID, func(cur *entity.Session) { cur.LastError = waitErr.Error() })
			return nil, waitErr
		}
		o.release(ctx, s.ID, func(cur *entity.Session) { o.resetToSelect(cur, waitErr) })
		return nil, waitErr
	}
	return o.settle(ctx, s)
}

func settlementOf(s *entity.Session) Settlement {
	return Settlement{
		BuyerID:       s.BuyerID,
		ContentID:     s.ContentID,
		Type:          s.Type,
		Shares:        s.Shares,
		Network:       s.Network,
		Price:         s.Price,
		ChainAmount:   s.ChainAmount,
		ApproveTxHash: s.ApproveTxHash,
		TxHash:        s.PurchaseTxHash,
	}
}

// settle records a confirmed purchase. A payment the ledger refuses is kept as
// unsettled for refund; an internal failure leaves the session purchasing so
// refresh can settle it later.
func (o *orchestrator) settle(ctx context.Context, s *entity.Session) (*entity.Session, error) {
	settlement := settlementOf(s)
	purchase, err := o.ledger.Settle(ctx, settlement)
	if err == nil {
		return o.release(ctx, s.ID, func(cur *entity.Session) {
			cur.State = entity.StateSettled
			cur.PurchaseID = purchase.ID
			cur.ExpiresAt = o.expiry()
			cur.LastError = ""
		})
	}

	switch apperr.KindOf(err) {
	case apperr.KindSoldOut, apperr.KindValidation, apperr.KindNotFound, apperr.KindConflict:
		if recErr := o.ledger.RecordUnsettled(ctx, settlement, err); recErr != nil {
			o.release(ctx, s.ID, func(cur *entity.Session) { cur.LastError = err.Error() })
			return nil, err
		}
		o.release(ctx, s.ID, func(cur *entity.Session) {
			o.resetToSelect(cur, err)
			cur.LastError = "payment " + settlement.TxHash + " was recorded for refund: " + err.Error()
		})
	default:
		o.logger.Error("Failed to settle purchase %s: %v", settlement.TxHash, err)
		o.release(ctx, s.ID, func(cur *entity.Session) { cur.LastError = err.Error() })
	}
	return nil, err
}

func (o *orchestrator) Refresh(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	s, err := o.Get(ctx, buyerID, sessionID)
	if err != nil {
		return nil, err
	}
	if o.inFlight(s) {
		return s, nil
	}

	switch {
	case s.State == entity.StateApproving && s.ApproveTxHash != "":
		hash := common.HexToHash(s.ApproveTxHash)
		receipt, err := o.gateway.CheckReceipt(ctx, s.Network, hash, "approve")
		if receipt == nil && err == nil {
			return s, nil
		}
		if _, err := o.claim(ctx, sessionID, func(cur *entity.Session) error {
			if cur.State != entity.StateApproving || cur.ApproveTxHash != s.ApproveTxHash {
				return apperr.Conflict("session changed, reload it")
			}
			return nil
		}); err != nil {
			return nil, err
		}
		return o.approvalResolved(ctx, sessionID, err)

	case s.State == entity.StatePurchasing && s.PurchaseTxHash != "":
		hash := common.HexToHash(s.PurchaseTxHash)
		receipt, err := o.gateway.CheckReceipt(ctx, s.Network, hash, s.Method)
		if receipt == nil && err == nil {
			return s, nil
		}
		claimed, claimErr := o.claim(ctx, sessionID, func(cur *entity.Session) error {
			if cur.State != entity.StatePurchasing || cur.PurchaseTxHash != s.PurchaseTxHash {
				return apperr.Conflict("session changed, reload it")
			}
			return nil
		})
		if claimErr != nil {
			return nil, claimErr
		}
		if err == nil && !s.Custodial {
			if verr := o.verifyPayment(ctx, claimed, hash, receipt); verr != nil {
				o.release(ctx, sessionID, func(cur *entity.Session) { o.resetToSelect(cur, verr) })
				return nil, verr
			}
		}
		return o.purchaseResolved(ctx, claimed, err)
	}
	return s, nil
}

func (o *orchestrator) Cancel(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	if _, err := o.Get(ctx, buyerID, sessionID); err != nil {
		return nil, err
	}
	return o.sessions.Update(ctx, sessionID, func(s *entity.Session) error {
		if s.State == entity.StateSettled {
			return apperr.Conflict("purchase is already settled")
		}
		if o.inFlight(s) {
			return apperr.Conflict("a transaction for this purchase is in flight")
		}
		if s.PurchaseTxHash != "" {
			return apperr.Conflict("purchase %s has not resolved, refresh the session", s.PurchaseTxHash)
		}
		o.resetToSelect(s, nil)
		s.LastError = ""
		return nil
	})
}

func (o *orchestrator) Confirm(ctx context.Context, buyerID, sessionID, approveTxHash, purchaseTxHash string) (*entity.Session, error) {
	s, err := o.Get(ctx, buyerID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Custodial {
		return nil, apperr.Validation("custodial purchases are executed by the platform")
	}
	hash, err := parseTxHash(purchaseTxHash)
	if err != nil {
		return nil, err
	}
	if approveTxHash != "" {
		if _, err := parseTxHash(approveTxHash); err != nil {
			return nil, err
		}
	}
	if s.State == entity.StateSettled {
		if s.PurchaseTxHash == hash.Hex() {
			return s, nil
		}
		return nil, apperr.Conflict("purchase is already settled")
	}

	s, err = o.claim(ctx, sessionID, func(cur *entity.Session) error {
		if cur.PurchaseTxHash != "" && cur.PurchaseTxHash != hash.Hex() {
			return apperr.Conflict("session is waiting on purchase %s", cur.PurchaseTxHash)
		}
		cur.State = entity.StatePurchasing
		cur.ApproveTxHash = approveTxHash
		cur.PurchaseTxHash = hash.Hex()
		pin(cur)
		return nil
	})
	if err != nil {
		return nil, err
	}

	receipt, err := o.gateway.WaitReceipt(ctx, s.Network, hash, s.Method)
	if err == nil {
		if verr := o.verifyPayment(ctx, s, hash, receipt); verr != nil {
			o.release(ctx, sessionID, func(cur *entity.Session) { o.resetToSelect(cur, verr) })
			return nil, verr
		}
	}
	return o.purchaseResolved(ctx, s, err)
}

// verifyPayment checks a wallet-submitted purchase: the quoted payer called
// the quoted entrypoint for this content, and the receipt moved at least the
// quoted amount of the payment token out of the payer's wallet.
func (o *orchestrator) verifyPayment(ctx context.Context, s *entity.Session, hash common.Hash, receipt *types.Receipt) error {
	call, err := o.gateway.DecodeCall(ctx, s.Network, hash)
	if err != nil {
		return err
	}
	payer := common.HexToAddress(s.PayerAddress)
	if !chain.SameAddress(call.From.Hex(), s.PayerAddress) {
		return apperr.Validation("transaction %s was not sent by %s", hash.Hex(), wallet.ShortAddress(s.PayerAddress))
	}
	if !chain.SameAddress(call.To.Hex(), s.Contract) || call.Method != s.Method || len(call.Args) == 0 {
		return apperr.Validation("transaction %s does not call %s", hash.Hex(), s.Method)
	}

	content, err := o.contents.GetByID(s.ContentID)
	if err != nil {
		return err
	}
	want := content.TokenID
	if s.Type == entity.PurchaseInvestment {
		want = content.ChainContentID
	}
	if id, ok := call.Args[0].(*big.Int); !ok || id.String() != want {
		return apperr.Validation("transaction %s is for another listing", hash.Hex())
	}
	if s.Type == entity.PurchaseNFT {
		to, _ := call.Args[1].(common.Address)
		price, _ := call.Args[2].(*big.Int)
		if to != payer || price == nil || price.Cmp(s.ChainAmount.Big()) != 0 {
			return apperr.Validation("transaction %s does not transfer the token to %s at the quoted price", hash.Hex(), wallet.ShortAddress(s.PayerAddress))
		}
	}

	paid := chain.TransferredFrom(receipt, common.HexToAddress(s.PaymentToken), payer)
	if paid.Cmp(s.ChainAmount.Big()) < 0 {
		return apperr.Validation("transaction %s paid %s of the quoted %s", hash.Hex(), paid, s.ChainAmount)
	}
	return nil
}

func (o *orchestrator) Run(ctx context.Context, buyerID string, req entity.PurchaseRequest) (*entity.Session, error) {
	s, err := o.Quote(ctx, buyerID, req)
	if err != nil {
		return nil, err
	}
	if !s.Custodial {
		return s, nil
	}
	if _, err := o.Approve(ctx, buyerID, s.ID); err != nil {
		return nil, err
	}
	return o.Purchase(ctx, buyerID, s.ID)
}

func parseID(value string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(value, 10)
	if !ok || id.Sign() < 0 {
		return nil, apperr.Validation("invalid on-chain id %q", value)
	}
	return id, nil
}

func parseTxHash(value string) (common.Hash, error) {
	raw, err := hexutil.Decode(value)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, apperr.Validation("invalid transaction hash %q", value)
	}
	return common.BytesToHash(raw), nil
}
