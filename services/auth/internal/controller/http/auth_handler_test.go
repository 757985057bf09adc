package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelshare/pkg/apperr"
	"reelshare/pkg/money"
	"reelshare/pkg/wallet"
	"reelshare/services/auth/internal/entity"
	"reelshare/services/auth/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAuthUseCase is a mock implementation of AuthUseCase
type MockAuthUseCase struct {
	mock.Mock
}

func (m *MockAuthUseCase) Register(email, username, password string, role entity.UserRole) (*entity.User, string, error) {
	args := m.Called(email, username, password, role)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*entity.User), args.String(1), args.Error(2)
}

func (m *MockAuthUseCase) Login(email, password string) (*entity.User, string, error) {
	args := m.Called(email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*entity.User), args.String(1), args.Error(2)
}

func (m *MockAuthUseCase) GetUser(userID string) (*entity.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockAuthUseCase) IssueNonce(ctx context.Context, address string) (string, error) {
	args := m.Called(address)
	return args.String(0), args.Error(1)
}

func (m *MockAuthUseCase) Authenticate(ctx context.Context, address, signature string) (*entity.User, string, error) {
	args := m.Called(address, signature)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*entity.User), args.String(1), args.Error(2)
}

func (m *MockAuthUseCase) Balances(ctx context.Context, userID string, networks []string) (wallet.Balances, error) {
	args := m.Called(userID, networks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(wallet.Balances), args.Error(1)
}

var _ usecase.AuthUseCase = (*MockAuthUseCase)(nil)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestRegister_Success(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.POST("/register", handler.Register)

	user := &entity.User{ID: "user-1", Email: "p@example.com", Username: "producer", Role: entity.RoleProducer,
		CustodialAddress: "0x1234567890abcdef1234567890abcdef12345678"}
	mockUseCase.On("Register", "p@example.com", "producer", "secret123", entity.RoleProducer).Return(user, "token-1", nil)

	body, _ := json.Marshal(RegisterRequest{Email: "p@example.com", Username: "producer", Password: "secret123", Role: "producer"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response AuthResponse
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "token-1", response.Token)
	assert.Equal(t, user.CustodialAddress, response.User.CustodialAddress)

	mockUseCase.AssertExpectations(t)
}

func TestRegister_InvalidRole(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.POST("/register", handler.Register)

	body, _ := json.Marshal(RegisterRequest{Email: "p@example.com", Username: "producer", Password: "secret123", Role: "admin"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUseCase.AssertNotCalled(t, "Register")
}

func TestRegister_Conflict(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.POST("/register", handler.Register)

	mockUseCase.On("Register", "p@example.com", "producer", "secret123", entity.UserRole("")).
		Return(nil, "", apperr.Conflict("user with this email already exists"))

	body, _ := json.Marshal(RegisterRequest{Email: "p@example.com", Username: "producer", Password: "secret123"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockUseCase.AssertExpectations(t)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.POST("/login", handler.Login)

	mockUseCase.On("Login", "v@example.com", "wrong").Return(nil, "", usecase.ErrInvalidCredentials)

	body, _ := json.Marshal(LoginRequest{Email: "v@example.com", Password: "wrong"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockUseCase.AssertExpectations(t)
}

func TestNonce(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.GET("/users/nonce", handler.Nonce)

	address := "0x1234567890abcdef1234567890abcdef12345678"
	mockUseCase.On("IssueNonce", address).Return("Sign in to ReelShare\nAddress: "+address+"\nNonce: abc", nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/users/nonce?address="+address, nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Contains(t, response["message"], "Nonce: abc")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/users/nonce", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mockUseCase.AssertExpectations(t)
}

func TestAuthenticate_BadSignature(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.POST("/users/authenticate", handler.Authenticate)

	mockUseCase.On("Authenticate", "0xabc", "0xdead").
		Return(nil, "", apperr.Authorization("signature does not match wallet address"))

	body, _ := json.Marshal(AuthenticateRequest{Address: "0xabc", Signature: "0xdead"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/users/authenticate", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "authorization", response["kind"])
	mockUseCase.AssertExpectations(t)
}

func TestBalances_ParsesNetworks(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.GET("/wallet/balances", func(c *gin.Context) {
		c.Set("user_id", "user-1")
		handler.Balances(c)
	})

	balances := wallet.Balances{
		"sepolia": {"USDC": {Symbol: "USDC", Amount: money.FromInt64(5), Status: wallet.StatusOK}},
		"amoy":    {"USDC": {Symbol: "USDC", Status: wallet.StatusError, Error: "rpc unavailable"}},
	}
	mockUseCase.On("Balances", "user-1", []string{"sepolia", "amoy"}).Return(balances, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/wallet/balances?networks=sepolia,%20amoy", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Balances map[string]map[string]wallet.Balance `json:"balances"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "5", response.Balances["sepolia"]["USDC"].Amount.String())
	assert.Equal(t, wallet.StatusError, response.Balances["amoy"]["USDC"].Status)

	mockUseCase.AssertExpectations(t)
}

func TestMe_Unauthorized(t *testing.T) {
	mockUseCase := new(MockAuthUseCase)
	handler := NewAuthHandler(mockUseCase)

	router := setupTestRouter()
	router.GET("/me", handler.Me)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
