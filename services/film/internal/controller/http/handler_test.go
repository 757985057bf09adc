package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelshare/pkg/apperr"
	"reelshare/pkg/money"
	"reelshare/pkg/queue"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFilmUseCase struct {
	mock.Mock
}

func (m *MockFilmUseCase) Upload(ctx context.Context, producerID string, in usecase.UploadInput) (*entity.Content, error) {
	args := m.Called(producerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Content), args.Error(1)
}

func (m *MockFilmUseCase) GetFilm(id string) (*entity.Content, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Content), args.Error(1)
}

func (m *MockFilmUseCase) Stream(ctx context.Context, userID, network, tokenID string) (string, error) {
	args := m.Called(userID, network, tokenID)
	return args.String(0), args.Error(1)
}

func (m *MockFilmUseCase) RecordView(ctx context.Context, event queue.ViewEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockFilmUseCase) Resell(ctx context.Context, sellerID, contentID, buyerAddress, price string) (*usecase.ResellResult, error) {
	args := m.Called(sellerID, contentID, buyerAddress, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ResellResult), args.Error(1)
}

func (m *MockFilmUseCase) Analytics(ctx context.Context, producerID, contentID string) (*entity.Analytics, error) {
	args := m.Called(producerID, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Analytics), args.Error(1)
}

func (m *MockFilmUseCase) ProducerRevenue(ctx context.Context, producerID string) ([]*entity.RevenueSummary, error) {
	args := m.Called(producerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.RevenueSummary), args.Error(1)
}

func (m *MockFilmUseCase) ClaimEarnings(ctx context.Context, userID, contentID string) (*usecase.ClaimResult, error) {
	args := m.Called(userID, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ClaimResult), args.Error(1)
}

type MockPurchaseUseCase struct {
	mock.Mock
}

func (m *MockPurchaseUseCase) session(args mock.Arguments) (*entity.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (m *MockPurchaseUseCase) Quote(ctx context.Context, buyerID string, req entity.PurchaseRequest) (*entity.Session, error) {
	return m.session(m.Called(buyerID, req))
}

func (m *MockPurchaseUseCase) Get(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	return m.session(m.Called(buyerID, sessionID))
}

func (m *MockPurchaseUseCase) Approve(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	return m.session(m.Called(buyerID, sessionID))
}

func (m *MockPurchaseUseCase) Purchase(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	return m.session(m.Called(buyerID, sessionID))
}

func (m *MockPurchaseUseCase) Refresh(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	return m.session(m.Called(buyerID, sessionID))
}

func (m *MockPurchaseUseCase) Cancel(ctx context.Context, buyerID, sessionID string) (*entity.Session, error) {
	return m.session(m.Called(buyerID, sessionID))
}

func (m *MockPurchaseUseCase) Confirm(ctx context.Context, buyerID, sessionID, approveTxHash, purchaseTxHash string) (*entity.Session, error) {
	return m.session(m.Called(buyerID, sessionID, approveTxHash, purchaseTxHash))
}

func (m *MockPurchaseUseCase) Run(ctx context.Context, buyerID string, req entity.PurchaseRequest) (*entity.Session, error) {
	return m.session(m.Called(buyerID, req))
}

var (
	_ usecase.FilmUseCase     = (*MockFilmUseCase)(nil)
	_ usecase.PurchaseUseCase = (*MockPurchaseUseCase)(nil)
)

const testUserID = "user-1"

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", testUserID)
		c.Next()
	})
	return r
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestQuote_Success(t *testing.T) {
	mockUseCase := new(MockPurchaseUseCase)
	handler := NewPurchaseHandler(mockUseCase)
	router := setupTestRouter()
	router.POST("/purchases/quote", handler.Quote)

	session := &entity.Session{ID: "s-1", State: entity.StateSelect, Price: money.FromInt64(3_000_000)}
	mockUseCase.On("Quote", testUserID, entity.InvestmentPurchase{ContentID: "c-1", Shares: 3}).Return(session, nil)

	w := postJSON(router, "/purchases/quote", QuoteRequest{ContentID: "c-1", Type: "investment", Shares: 3})

	assert.Equal(t, http.StatusCreated, w.Code)
	var got entity.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "s-1", got.ID)
	assert.Equal(t, "3000000", got.Price.String())
	mockUseCase.AssertExpectations(t)
}

func TestQuote_InvalidType(t *testing.T) {
	mockUseCase := new(MockPurchaseUseCase)
	handler := NewPurchaseHandler(mockUseCase)
	router := setupTestRouter()
	router.POST("/purchases/quote", handler.Quote)

	w := postJSON(router, "/purchases/quote", map[string]interface{}{"content_id": "c-1", "type": "lease"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUseCase.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
}

func TestPurchaseSteps_MapErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		method string
		err    error
		status int
	}{
		{"approve without funds", "/purchases/s-1/approve", "Approve", apperr.InsufficientBalance("balance too low"), http.StatusPaymentRequired},
		{"execute timed out", "/purchases/s-1/execute", "Purchase", apperr.New(apperr.KindUnknownOutcome, "outcome unknown"), http.StatusGatewayTimeout},
		{"refresh settled elsewhere", "/purchases/s-1/refresh", "Refresh", apperr.Conflict("session is busy"), http.StatusConflict},
		{"cancel missing", "/purchases/s-1/cancel", "Cancel", apperr.NotFound("session not found"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUseCase := new(MockPurchaseUseCase)
			handler := NewPurchaseHandler(mockUseCase)
			router := setupTestRouter()
			router.POST("/purchases/:id/approve", handler.Approve)
			router.POST("/purchases/:id/execute", handler.Execute)
			router.POST("/purchases/:id/refresh", handler.Refresh)
			router.POST("/purchases/:id/cancel", handler.Cancel)

			mockUseCase.On(tt.method, testUserID, "s-1").Return(nil, tt.err)

			w := postJSON(router, tt.path, nil)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(apperr.KindOf(tt.err)), body["kind"])
			mockUseCase.AssertExpectations(t)
		})
	}
}

func TestGetSession(t *testing.T) {
	mockUseCase := new(MockPurchaseUseCase)
	handler := NewPurchaseHandler(mockUseCase)
	router := setupTestRouter()
	router.GET("/purchases/:id", handler.GetSession)

	mockUseCase.On("Get", testUserID, "s-1").Return(&entity.Session{ID: "s-1", State: entity.StatePurchasing}, nil)

	req, _ := http.NewRequest(http.MethodGet, "/purchases/s-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"purchasing"`)
}

func TestConfirm(t *testing.T) {
	mockUseCase := new(MockPurchaseUseCase)
	handler := NewPurchaseHandler(mockUseCase)
	router := setupTestRouter()
	router.POST("/purchases/:id/confirm", handler.Confirm)

	mockUseCase.On("Confirm", testUserID, "s-1", "0xaa", "0xbb").Return(&entity.Session{ID: "s-1", State: entity.StateSettled}, nil)

	w := postJSON(router, "/purchases/s-1/confirm", ConfirmRequest{ApproveTxHash: "0xaa", PurchaseTxHash: "0xbb"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "/purchases/s-1/confirm", ConfirmRequest{ApproveTxHash: "0xaa"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUseCase.AssertNumberOfCalls(t, "Confirm", 1)
}

func TestPurchaseFilm_RunsWholeFlow(t *testing.T) {
	films := new(MockFilmUseCase)
	purchases := new(MockPurchaseUseCase)
	handler := NewFilmHandler(films, purchases, nil)
	router := setupTestRouter()
	router.POST("/films/purchase", handler.PurchaseFilm)

	purchases.On("Run", testUserID, entity.DirectPurchase{ContentID: "c-1"}).
		Return(&entity.Session{ID: "s-1", State: entity.StateSettled, PurchaseID: "p-1"}, nil)

	w := postJSON(router, "/films/purchase", QuoteRequest{ContentID: "c-1", Type: "direct"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"purchase_id":"p-1"`)
	purchases.AssertExpectations(t)
}

func uploadRequest(t *testing.T, fields map[string]string, withMedia bool) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if withMedia {
		part, err := writer.CreateFormFile("media", "film.mp4")
		require.NoError(t, err)
		_, err = part.Write([]byte("frames"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/films/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadFilm_Success(t *testing.T) {
	films := new(MockFilmUseCase)
	handler := NewFilmHandler(films, nil, nil)
	router := setupTestRouter()
	router.POST("/films/upload", handler.UploadFilm)

	films.On("Upload", testUserID, mock.MatchedBy(func(in usecase.UploadInput) bool {
		return in.Title == "Night Train" &&
			in.DirectPrice == "1.5" &&
			in.TotalShares == 1000 &&
			in.CreatorShare == 70 && in.InvestorShare == 20 && in.PlatformFee == 10 &&
			in.MediaName == "film.mp4" &&
			in.ReleaseDate.Year() == 2024 &&
			in.Media != nil
	})).Return(&entity.Content{ID: "c-1", Title: "Night Train", TokenID: "7"}, nil)

	req := uploadRequest(t, map[string]string{
		"title":           "Night Train",
		"direct_price":    "1.5",
		"price_per_share": "0.5",
		"total_shares":    "1000",
		"creator_share":   "70",
		"investor_share":  "20",
		"platform_fee":    "10",
		"release_date":    "2024-03-01",
	}, true)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"token_id":"7"`)
	films.AssertExpectations(t)
}

func TestUploadFilm_BadRequests(t *testing.T) {
	films := new(MockFilmUseCase)
	handler := NewFilmHandler(films, nil, nil)
	router := setupTestRouter()
	router.POST("/films/upload", handler.UploadFilm)

	cases := []*http.Request{
		uploadRequest(t, map[string]string{"title": "Night Train"}, false),
		uploadRequest(t, map[string]string{"title": "Night Train", "release_date": "March"}, true),
		uploadRequest(t, map[string]string{"description": "untitled"}, true),
	}
	for _, req := range cases {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	films.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestStreamFilm(t *testing.T) {
	films := new(MockFilmUseCase)
	handler := NewFilmHandler(films, nil, nil)
	router := setupTestRouter()
	router.GET("/films/stream/:tokenId", handler.StreamFilm)

	films.On("Stream", testUserID, "sepolia", "7").Return("https://media.example/films/7.mp4", nil)
	films.On("Stream", testUserID, "", "8").Return("", apperr.Authorization("purchase this film to stream it"))

	req, _ := http.NewRequest(http.MethodGet, "/films/stream/7?network=sepolia", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://media.example/films/7.mp4")

	req, _ = http.NewRequest(http.MethodGet, "/films/stream/8", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestResellFilm(t *testing.T) {
	films := new(MockFilmUseCase)
	handler := NewFilmHandler(films, nil, nil)
	router := setupTestRouter()
	router.POST("/films/resell", handler.ResellFilm)

	films.On("Resell", testUserID, "c-1", "0xbeef", "20").
		Return(&usecase.ResellResult{TxHash: "0x01", Royalty: money.FromInt64(2_000_000)}, nil)

	w := postJSON(router, "/films/resell", ResellRequest{ContentID: "c-1", BuyerAddress: "0xbeef", Price: "20"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"royalty":"2000000"`)

	w = postJSON(router, "/films/resell", map[string]string{"content_id": "c-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	films.AssertNumberOfCalls(t, "Resell", 1)
}

func TestClaimEarnings(t *testing.T) {
	films := new(MockFilmUseCase)
	handler := NewFilmHandler(films, nil, nil)
	router := setupTestRouter()
	router.POST("/investments/:contentId/claim", handler.ClaimEarnings)

	films.On("ClaimEarnings", testUserID, "c-1").Return(&usecase.ClaimResult{
		ContentID: "c-1",
		Amount:    money.FromInt64(4_500_000),
		Payout:    &entity.Payout{Status: entity.PayoutSent},
	}, nil)

	w := postJSON(router, "/investments/c-1/claim", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amount":"4500000"`)
	assert.Contains(t, w.Body.String(), `"status":"sent"`)
}

func TestAnalytics_Forbidden(t *testing.T) {
	films := new(MockFilmUseCase)
	handler := NewFilmHandler(films, nil, nil)
	router := setupTestRouter()
	router.GET("/films/analytics/:filmId", handler.Analytics)

	films.On("Analytics", testUserID, "c-1").Return(nil, apperr.Authorization("only the producer can view analytics"))

	req, _ := http.NewRequest(http.MethodGet, "/films/analytics/c-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "only the producer")
}
