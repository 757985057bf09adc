package http

import (
	"context"
	"net/http"

	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/usecase"

	"github.com/gin-gonic/gin"
)

type PurchaseHandler struct {
	purchaseUseCase usecase.PurchaseUseCase
}

func NewPurchaseHandler(purchaseUseCase usecase.PurchaseUseCase) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseUseCase: purchaseUseCase,
	}
}

type QuoteRequest struct {
	ContentID string `json:"content_id" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=direct nft investment"`
	Shares    int64  `json:"shares" binding:"omitempty,min=1"`
}

func (r QuoteRequest) toPurchase() entity.PurchaseRequest {
	switch entity.PurchaseType(r.Type) {
	case entity.PurchaseNFT:
		return entity.NFTPurchase{ContentID: r.ContentID}
	case entity.PurchaseInvestment:
		return entity.InvestmentPurchase{ContentID: r.ContentID, Shares: r.Shares}
	default:
		return entity.DirectPurchase{ContentID: r.ContentID}
	}
}

type ConfirmRequest struct {
	ApproveTxHash  string `json:"approve_tx_hash"`
	PurchaseTxHash string `json:"purchase_tx_hash" binding:"required"`
}

// Quote godoc
// @Summary      Quote a purchase
// @Description  Fixes the price and payer for a purchase session. The quoted price is used for every later step.
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body QuoteRequest true "Purchase"
// @Success      201  {object}  entity.Session
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /purchases/quote [post]
func (h *PurchaseHandler) Quote(c *gin.Context) {
	userID := c.GetString("user_id")

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.purchaseUseCase.Quote(c.Request.Context(), userID, req.toPurchase())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetSession godoc
// @Summary      Get a purchase session
// @Tags         purchases
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200  {object}  entity.Session
// @Failure      404  {object}  map[string]string
// @Router       /purchases/{id} [get]
func (h *PurchaseHandler) GetSession(c *gin.Context) {
	userID := c.GetString("user_id")

	session, err := h.purchaseUseCase.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Approve godoc
// @Summary      Approve the payment token
// @Description  Custodial accounts only. Skipped when the existing allowance already covers the quote.
// @Tags         purchases
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200  {object}  entity.Session
// @Failure      402  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /purchases/{id}/approve [post]
func (h *PurchaseHandler) Approve(c *gin.Context) {
	h.step(c, h.purchaseUseCase.Approve)
}

// Execute godoc
// @Summary      Execute the purchase
// @Description  Custodial accounts only. Sends the purchase and settles it once confirmed.
// @Tags         purchases
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200  {object}  entity.Session
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /purchases/{id}/execute [post]
func (h *PurchaseHandler) Execute(c *gin.Context) {
	h.step(c, h.purchaseUseCase.Purchase)
}

// Refresh godoc
// @Summary      Re-check a pending transaction
// @Description  Looks up the receipt of a transaction whose outcome was unknown and advances the session if it has resolved.
// @Tags         purchases
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200  {object}  entity.Session
// @Failure      409  {object}  map[string]string
// @Router       /purchases/{id}/refresh [post]
func (h *PurchaseHandler) Refresh(c *gin.Context) {
	h.step(c, h.purchaseUseCase.Refresh)
}

// Cancel godoc
// @Summary      Cancel a purchase session
// @Tags         purchases
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200  {object}  entity.Session
// @Failure      409  {object}  map[string]string
// @Router       /purchases/{id}/cancel [post]
func (h *PurchaseHandler) Cancel(c *gin.Context) {
	h.step(c, h.purchaseUseCase.Cancel)
}

// Confirm godoc
// @Summary      Confirm a wallet-signed purchase
// @Description  Wallet-connected buyers submit the hashes of the approve and purchase transactions they sent.
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Param        request body ConfirmRequest true "Transaction hashes"
// @Success      200  {object}  entity.Session
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /purchases/{id}/confirm [post]
func (h *PurchaseHandler) Confirm(c *gin.Context) {
	userID := c.GetString("user_id")

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.purchaseUseCase.Confirm(c.Request.Context(), userID, c.Param("id"), req.ApproveTxHash, req.PurchaseTxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *PurchaseHandler) step(c *gin.Context, fn func(ctx context.Context, buyerID, sessionID string) (*entity.Session, error)) {
	session, err := fn(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
