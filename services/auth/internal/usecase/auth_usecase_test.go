package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"reelshare/pkg/apperr"
	"reelshare/pkg/chain"
	"reelshare/pkg/chain/chaintest"
	"reelshare/pkg/jwt"
	"reelshare/pkg/logger"
	"reelshare/pkg/wallet"
	"reelshare/services/auth/internal/entity"
	"reelshare/services/auth/internal/model"
	"reelshare/services/auth/internal/repo/cache"
	"reelshare/services/auth/internal/repo/persistent"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testWalletSecret = "auth-usecase-test-secret-0123456789abcdef"

type fixture struct {
	uc       AuthUseCase
	repo     persistent.UserRepository
	jwt      *jwt.Service
	deriver  *wallet.Deriver
	fakeNode *chaintest.Client
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.UserModel{}))

	deriver, err := wallet.NewDeriver(testWalletSecret)
	require.NoError(t, err)

	node := chaintest.New()
	gw := chain.NewGateway([]*chain.Network{node.Network("sepolia")}, logger.New(), chain.Options{ReadRetries: 1, RetryInterval: 1})
	jwtService := jwt.NewService("test-secret")
	repo := persistent.NewUserRepository(db)

	uc := NewAuthUseCase(repo, cache.NewMemoryNonceStore(), jwtService, deriver, gw,
		wallet.NewAggregator(gw, nil, logger.New()), logger.New())
	return &fixture{uc: uc, repo: repo, jwt: jwtService, deriver: deriver, fakeNode: node}
}

func TestRegister_DerivesCustodialWallet(t *testing.T) {
	f := setup(t)

	user, token, err := f.uc.Register("producer@example.com", "producer1", "secret123", entity.RoleProducer)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Empty(t, user.Password)
	assert.Equal(t, entity.RoleProducer, user.Role)

	expected, err := f.deriver.Address(user.ID)
	require.NoError(t, err)
	assert.Equal(t, expected, user.CustodialAddress)
	assert.Equal(t, user.CustodialAddress, user.ActiveAddress())

	claims, err := f.jwt.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "producer", claims.Role)
}

func TestRegister_Duplicate(t *testing.T) {
	f := setup(t)
	_, _, err := f.uc.Register("viewer@example.com", "viewer1", "secret123", "")
	require.NoError(t, err)

	_, _, err = f.uc.Register("viewer@example.com", "viewer2", "secret123", "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, _, err = f.uc.Register("other@example.com", "viewer1", "secret123", "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRegister_InvalidRole(t *testing.T) {
	f := setup(t)

	_, _, err := f.uc.Register("admin@example.com", "admin", "secret123", "admin")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLogin(t *testing.T) {
	f := setup(t)
	registered, _, err := f.uc.Register("viewer@example.com", "viewer1", "secret123", "")
	require.NoError(t, err)

	user, token, err := f.uc.Login("viewer@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, token)

	_, _, err = f.uc.Login("viewer@example.com", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, _, err = f.uc.Login("missing@example.com", "secret123")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func signChallenge(t *testing.T, key *chain.KeySigner, message string) string {
	t.Helper()
	sig, err := key.SignMessage([]byte(message))
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(sig)
}

func newWalletKey(t *testing.T) *chain.KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return chain.NewKeySigner(key)
}

func TestAuthenticate_CreatesWalletUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	key := newWalletKey(t)
	address := key.Address().Hex()

	message, err := f.uc.IssueNonce(ctx, address)
	require.NoError(t, err)

	user, token, err := f.uc.Authenticate(ctx, address, signChallenge(t, key, message))
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, entity.RoleViewer, user.Role)
	assert.True(t, chain.SameAddress(address, user.WalletAddress))
	assert.Equal(t, user.WalletAddress, user.ActiveAddress())
	assert.NotEmpty(t, user.CustodialAddress)

	// second sign-in finds the same account
	message, err = f.uc.IssueNonce(ctx, address)
	require.NoError(t, err)
	again, _, err := f.uc.Authenticate(ctx, address, signChallenge(t, key, message))
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestAuthenticate_NonceIsSingleUse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	key := newWalletKey(t)
	address := key.Address().Hex()

	message, err := f.uc.IssueNonce(ctx, address)
	require.NoError(t, err)
	signature := signChallenge(t, key, message)

	_, _, err = f.uc.Authenticate(ctx, address, signature)
	require.NoError(t, err)

	_, _, err = f.uc.Authenticate(ctx, address, signature)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestAuthenticate_WrongSigner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	claimed := newWalletKey(t)
	attacker := newWalletKey(t)

	message, err := f.uc.IssueNonce(ctx, claimed.Address().Hex())
	require.NoError(t, err)

	_, _, err = f.uc.Authenticate(ctx, claimed.Address().Hex(), signChallenge(t, attacker, message))
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.repo.GetByWalletAddress(claimed.Address().Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestIssueNonce_InvalidAddress(t *testing.T) {
	f := setup(t)

	_, err := f.uc.IssueNonce(context.Background(), "0x123")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestBalances_UsesActiveWallet(t *testing.T) {
	f := setup(t)
	user, _, err := f.uc.Register("viewer@example.com", "viewer1", "secret123", "")
	require.NoError(t, err)
	f.fakeNode.SetBalance(common.HexToAddress(user.CustodialAddress), big.NewInt(3_000_000))

	balances, err := f.uc.Balances(context.Background(), user.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "3000000", balances["sepolia"]["USDC"].Amount.String())
	assert.Equal(t, wallet.StatusOK, balances["sepolia"]["USDC"].Status)

	_, err = f.uc.Balances(context.Background(), user.ID, []string{"mainnet"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
