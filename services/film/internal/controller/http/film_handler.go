package http

import (
	"net/http"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/pkg/logger"
	"reelshare/services/film/internal/usecase"

	"github.com/gin-gonic/gin"
)

type FilmHandler struct {
	filmUseCase     usecase.FilmUseCase
	purchaseUseCase usecase.PurchaseUseCase
	logger          *logger.Logger
}

func NewFilmHandler(filmUseCase usecase.FilmUseCase, purchaseUseCase usecase.PurchaseUseCase, logger *logger.Logger) *FilmHandler {
	return &FilmHandler{
		filmUseCase:     filmUseCase,
		purchaseUseCase: purchaseUseCase,
		logger:          logger,
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error(), "kind": apperr.KindOf(err)})
}

type UploadFilmRequest struct {
	Title         string `form:"title" binding:"required"`
	Description   string `form:"description"`
	Genre         string `form:"genre"`
	Duration      int64  `form:"duration" binding:"omitempty,min=0"`
	ReleaseDate   string `form:"release_date"`
	Network       string `form:"network"`
	DirectPrice   string `form:"direct_price"`
	NFTPrice      string `form:"nft_price"`
	PricePerShare string `form:"price_per_share"`
	TotalShares   int64  `form:"total_shares" binding:"omitempty,min=0"`
	CreatorShare  int    `form:"creator_share"`
	InvestorShare int    `form:"investor_share"`
	PlatformFee   int    `form:"platform_fee"`
}

type ResellRequest struct {
	ContentID    string `json:"content_id" binding:"required"`
	BuyerAddress string `json:"buyer_address" binding:"required"`
	Price        string `json:"price" binding:"required"`
}

// UploadFilm godoc
// @Summary      Upload a film
// @Description  Stores the media, registers the content on chain and mints the film token when a list price is set. Prices are decimal strings in payment token units; creator_share + investor_share + platform_fee must be 100.
// @Tags         films
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title formData string true "Film title"
// @Param        description formData string false "Description"
// @Param        genre formData string false "Genre"
// @Param        duration formData int false "Duration in seconds"
// @Param        release_date formData string false "Release date (YYYY-MM-DD)"
// @Param        network formData string false "Network to register on"
// @Param        direct_price formData string false "Streaming access price"
// @Param        nft_price formData string false "NFT price"
// @Param        price_per_share formData string false "Price of one investment share"
// @Param        total_shares formData int false "Investment shares offered"
// @Param        creator_share formData int true "Creator percentage"
// @Param        investor_share formData int true "Investor pool percentage"
// @Param        platform_fee formData int true "Platform percentage"
// @Param        media formData file true "Film media"
// @Success      201  {object}  entity.Content
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /films/upload [post]
func (h *FilmHandler) UploadFilm(c *gin.Context) {
	userID := c.GetString("user_id")

	var req UploadFilmRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var releaseDate time.Time
	if req.ReleaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReleaseDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "release_date must be YYYY-MM-DD"})
			return
		}
		releaseDate = parsed
	}

	fileHeader, err := c.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Media file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read media file"})
		return
	}
	defer file.Close()

	content, err := h.filmUseCase.Upload(c.Request.Context(), userID, usecase.UploadInput{
		Title:         req.Title,
		Description:   req.Description,
		Genre:         req.Genre,
		Duration:      req.Duration,
		ReleaseDate:   releaseDate,
		Network:       req.Network,
		DirectPrice:   req.DirectPrice,
		NFTPrice:      req.NFTPrice,
		PricePerShare: req.PricePerShare,
		TotalShares:   req.TotalShares,
		CreatorShare:  req.CreatorShare,
		InvestorShare: req.InvestorShare,
		PlatformFee:   req.PlatformFee,
		Media:         file,
		MediaName:     fileHeader.Filename,
		ContentType:   fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		h.logger.Error("Failed to upload film: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, content)
}

// GetFilm godoc
// @Summary      Get film by ID
// @Tags         films
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Content ID"
// @Success      200  {object}  entity.Content
// @Failure      404  {object}  map[string]string
// @Router       /films/{id} [get]
func (h *FilmHandler) GetFilm(c *gin.Context) {
	content, err := h.filmUseCase.GetFilm(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

// PurchaseFilm godoc
// @Summary      Buy in one call
// @Description  Quotes and, for custodial accounts, approves and executes the purchase. Wallet-connected buyers get the quoted session back and finish with /purchases/{id}/confirm.
// @Tags         films
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body QuoteRequest true "Purchase"
// @Success      200  {object}  entity.Session
// @Failure      400  {object}  map[string]string
// @Failure      402  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /films/purchase [post]
func (h *FilmHandler) PurchaseFilm(c *gin.Context) {
	userID := c.GetString("user_id")

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.purchaseUseCase.Run(c.Request.Context(), userID, req.toPurchase())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// StreamFilm godoc
// @Summary      Stream a film
// @Description  Returns a short-lived media URL when the user bought streaming access, owns the film token or produced the film.
// @Tags         films
// @Produce      json
// @Security     BearerAuth
// @Param        tokenId path string true "Film token ID"
// @Param        network query string false "Network"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /films/stream/{tokenId} [get]
func (h *FilmHandler) StreamFilm(c *gin.Context) {
	userID := c.GetString("user_id")

	url, err := h.filmUseCase.Stream(c.Request.Context(), userID, c.Query("network"), c.Param("tokenId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream_url": url})
}

// ResellFilm godoc
// @Summary      Resell a film token
// @Description  Transfers the film token from the seller's custodial wallet with the creator royalty applied.
// @Tags         films
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ResellRequest true "Resale"
// @Success      200  {object}  usecase.ResellResult
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /films/resell [post]
func (h *FilmHandler) ResellFilm(c *gin.Context) {
	userID := c.GetString("user_id")

	var req ResellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.filmUseCase.Resell(c.Request.Context(), userID, req.ContentID, req.BuyerAddress, req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Analytics godoc
// @Summary      Film analytics
// @Tags         films
// @Produce      json
// @Security     BearerAuth
// @Param        filmId path string true "Content ID"
// @Success      200  {object}  entity.Analytics
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /films/analytics/{filmId} [get]
func (h *FilmHandler) Analytics(c *gin.Context) {
	userID := c.GetString("user_id")

	analytics, err := h.filmUseCase.Analytics(c.Request.Context(), userID, c.Param("filmId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// ProducerRevenue godoc
// @Summary      Producer revenue
// @Description  Claimed and unclaimed earnings per film of the current producer
// @Tags         films
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  entity.RevenueSummary
// @Router       /films/producer/revenue [get]
func (h *FilmHandler) ProducerRevenue(c *gin.Context) {
	userID := c.GetString("user_id")

	summaries, err := h.filmUseCase.ProducerRevenue(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// ClaimEarnings godoc
// @Summary      Claim earnings
// @Description  Marks the caller's unclaimed earnings of a film as claimed and pays them out from the platform wallet. A failed payout is reported on the payout record and not retried.
// @Tags         investments
// @Produce      json
// @Security     BearerAuth
// @Param        contentId path string true "Content ID"
// @Success      200  {object}  usecase.ClaimResult
// @Failure      404  {object}  map[string]string
// @Router       /investments/{contentId}/claim [post]
func (h *FilmHandler) ClaimEarnings(c *gin.Context) {
	userID := c.GetString("user_id")

	result, err := h.filmUseCase.ClaimEarnings(c.Request.Context(), userID, c.Param("contentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
