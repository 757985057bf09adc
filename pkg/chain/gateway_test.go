package chain_test

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelshare/pkg/apperr"
	"reelshare/pkg/chain"
	"reelshare/pkg/chain/chaintest"
	"reelshare/pkg/logger"
)

func setupGateway(t *testing.T) (*chain.Gateway, *chaintest.Client, *chain.KeySigner) {
	t.Helper()
	fake := chaintest.New()
	gw := chain.NewGateway([]*chain.Network{fake.Network("testnet")}, logger.New(), chain.Options{
		CallTimeout:    time.Second,
		ReceiptTimeout: 50 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		ReadRetries:    1,
		RetryInterval:  time.Millisecond,
	})
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return gw, fake, chain.NewKeySigner(key)
}

func TestGateway_UnknownNetwork(t *testing.T) {
	gw, _, _ := setupGateway(t)

	_, err := gw.Network("mainnet")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGateway_SubmitCreate(t *testing.T) {
	gw, fake, signer := setupGateway(t)

	id, hash, err := gw.SubmitCreate(context.Background(), "testnet", signer, "Night Train", "QmHash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())
	assert.NotEqual(t, common.Hash{}, hash)

	calls := fake.CallsTo("createContent")
	require.Len(t, calls, 1)
	assert.Equal(t, signer.Address(), calls[0].From)
	assert.Equal(t, "Night Train", calls[0].Args[0])
}

func TestGateway_SubmitFilm(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	ctx := context.Background()

	tokenID, _, err := gw.SubmitFilm(ctx, "testnet", signer, chain.FilmParams{
		Title:       "Night Train",
		Genre:       "drama",
		Duration:    5400,
		ReleaseDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ContentHash: "QmHash",
		Price:       big.NewInt(25_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tokenID.Int64())

	meta, err := gw.FilmMetadata(ctx, "testnet", tokenID)
	require.NoError(t, err)
	assert.Equal(t, "Night Train", meta.Title)
	assert.Equal(t, int64(25_000_000), meta.Price.Int64())
	assert.Equal(t, signer.Address(), meta.Producer)
	assert.Len(t, fake.CallsTo("createFilm"), 1)
}

func TestGateway_SubmitCreate_EventNotFound(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	fake.SkipEvents = true

	_, hash, err := gw.SubmitCreate(context.Background(), "testnet", signer, "Night Train", "QmHash")
	require.Error(t, err)

	var notFound *chain.EventNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "ContentCreated", notFound.Event)
	assert.Equal(t, hash, notFound.Hash)
	assert.True(t, apperr.Is(err, apperr.KindEventNotFound))
}

func TestGateway_WaitReceipt_Revert(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	ctx := context.Background()
	fake.RevertOnChain["purchaseFilm"] = "film not approved"

	hash, err := gw.PurchaseFilm(ctx, "testnet", signer, big.NewInt(7))
	require.NoError(t, err)

	_, err = gw.WaitReceipt(ctx, "testnet", hash, "purchaseFilm")
	var txErr *chain.TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, chain.OutcomeFailed, txErr.Outcome)
	assert.Equal(t, "film not approved", txErr.Reason)
	assert.Equal(t, hash, txErr.Hash)
	assert.True(t, apperr.Is(err, apperr.KindBlockchain))
}

func TestGateway_EstimateRevert_NotBroadcast(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	fake.RevertOnEstimate["approve"] = "paused"

	hash, err := gw.Approve(context.Background(), "testnet", signer, chaintest.FilmContract, big.NewInt(10))
	var txErr *chain.TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, chain.OutcomeFailed, txErr.Outcome)
	assert.Equal(t, "paused", txErr.Reason)
	assert.Equal(t, common.Hash{}, hash)
	assert.Empty(t, fake.Calls())
}

func TestGateway_WaitReceipt_TimeoutIsUnknown(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	ctx := context.Background()
	fake.HoldReceipts = true

	hash, err := gw.Approve(ctx, "testnet", signer, chaintest.FilmContract, big.NewInt(10))
	require.NoError(t, err)

	_, err = gw.WaitReceipt(ctx, "testnet", hash, "approve")
	var txErr *chain.TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, chain.OutcomeUnknown, txErr.Outcome)
	assert.True(t, apperr.Is(err, apperr.KindUnknownOutcome))
	assert.Contains(t, err.Error(), "do not assume success")

	receipt, err := gw.CheckReceipt(ctx, "testnet", hash, "approve")
	require.NoError(t, err)
	assert.Nil(t, receipt)

	fake.Mine()
	receipt, err = gw.CheckReceipt(ctx, "testnet", hash, "approve")
	require.NoError(t, err)
	require.NotNil(t, receipt)
}

func TestGateway_SequentialNonces(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := gw.Approve(ctx, "testnet", signer, chaintest.FilmContract, big.NewInt(int64(i+1)))
		require.NoError(t, err)
	}
	assert.Len(t, fake.CallsTo("approve"), 3)
}

func TestGateway_VerifyOwnership_CaseInsensitive(t *testing.T) {
	gw, fake, _ := setupGateway(t)
	owner := common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
	fake.SetFilm(3, &chaintest.Film{Owner: owner})

	ctx := context.Background()
	ok, err := gw.VerifyOwnership(ctx, "testnet", big.NewInt(3), strings.ToLower(owner.Hex()))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gw.VerifyOwnership(ctx, "testnet", big.NewInt(3), "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gw.VerifyOwnership(ctx, "testnet", big.NewInt(3), "not-an-address")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateway_Reads(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	ctx := context.Background()
	owner := signer.Address()
	fake.SetBalance(owner, big.NewInt(1_500_000))
	fake.SetAllowance(owner, chaintest.FilmContract, big.NewInt(42))

	balance, err := gw.TokenBalance(ctx, "testnet", chaintest.PaymentToken, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), balance.Int64())

	decimals, err := gw.TokenDecimals(ctx, "testnet", chaintest.PaymentToken)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	allowance, err := gw.Allowance(ctx, "testnet", chaintest.PaymentToken, owner, chaintest.FilmContract)
	require.NoError(t, err)
	assert.Equal(t, int64(42), allowance.Int64())

	content, err := gw.Content(ctx, "testnet", big.NewInt(9))
	require.NoError(t, err)
	assert.Equal(t, int64(9), content.Id.Int64())
}

func TestGateway_RoyaltyInfo(t *testing.T) {
	gw, fake, _ := setupGateway(t)
	producer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	fake.SetFilm(1, &chaintest.Film{
		Owner:      producer,
		Metadata:   chain.FilmMetadata{Producer: producer},
		RoyaltyBps: 500,
	})

	receiver, amount, err := gw.RoyaltyInfo(context.Background(), "testnet", big.NewInt(1), big.NewInt(2_000))
	require.NoError(t, err)
	assert.Equal(t, producer, receiver)
	assert.Equal(t, int64(100), amount.Int64())
}

func TestGateway_ReadError(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	fake.ReadErr = errors.New("connection refused")

	_, err := gw.TokenBalance(context.Background(), "testnet", chaintest.PaymentToken, signer.Address())
	var readErr *chain.ReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, "balanceOf", readErr.Method)
	assert.True(t, apperr.Is(err, apperr.KindBlockchain))
}

func TestGateway_DecodeCall(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	ctx := context.Background()
	buyer := common.HexToAddress("0x2222222222222222222222222222222222222222")
	fake.SetFilm(4, &chaintest.Film{Owner: signer.Address()})

	hash, err := gw.TransferWithRoyalty(ctx, "testnet", signer, big.NewInt(4), buyer, big.NewInt(900))
	require.NoError(t, err)

	call, err := gw.DecodeCall(ctx, "testnet", hash)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), call.From)
	assert.Equal(t, chaintest.FilmContract, call.To)
	assert.Equal(t, "transferWithRoyalty", call.Method)
	require.Len(t, call.Args, 3)
	assert.Equal(t, big.NewInt(4), call.Args[0])
	assert.Equal(t, buyer, call.Args[1])
	assert.Equal(t, big.NewInt(900), call.Args[2])

	hash, err = gw.RecordView(ctx, "testnet", signer, big.NewInt(4))
	require.NoError(t, err)
	call, err = gw.DecodeCall(ctx, "testnet", hash)
	require.NoError(t, err)
	assert.Equal(t, chaintest.ContentContract, call.To)
	assert.Equal(t, "recordView", call.Method)
}

func TestTransferredFrom(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	ctx := context.Background()
	payer := signer.Address()
	fake.SetBalance(payer, big.NewInt(1_000))
	fake.SetAllowance(payer, chaintest.ContentContract, big.NewInt(700))

	hash, err := gw.DistributeRevenue(ctx, "testnet", signer, big.NewInt(2))
	require.NoError(t, err)
	receipt, err := gw.WaitReceipt(ctx, "testnet", hash, "distributeRevenue")
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(700), chain.TransferredFrom(receipt, chaintest.PaymentToken, payer))
	assert.Equal(t, int64(0), chain.TransferredFrom(receipt, chaintest.FilmContract, payer).Int64())
	assert.Equal(t, int64(0), chain.TransferredFrom(receipt, chaintest.PaymentToken, chaintest.FilmContract).Int64())
	assert.Equal(t, int64(0), chain.TransferredFrom(nil, chaintest.PaymentToken, payer).Int64())

	balance, err := gw.TokenBalance(ctx, "testnet", chaintest.PaymentToken, chaintest.ContentContract)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance.Int64())
}

func TestGateway_SendTransportErrorIsUnknown(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	fake.SendErr = io.EOF

	hash, err := gw.PurchaseFilm(context.Background(), "testnet", signer, big.NewInt(1))
	var txErr *chain.TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, chain.OutcomeUnknown, txErr.Outcome)
	assert.NotEqual(t, common.Hash{}, hash)
	assert.Equal(t, hash, txErr.Hash)
	assert.True(t, apperr.Is(err, apperr.KindUnknownOutcome))
	require.Len(t, fake.CallsTo("purchaseFilm"), 1)
	assert.Equal(t, hash, fake.CallsTo("purchaseFilm")[0].Hash)
}

func TestGateway_SendRejectedIsFailed(t *testing.T) {
	gw, fake, signer := setupGateway(t)
	fake.RejectSend = &chaintest.RPCError{Code: -32000, Message: "insufficient funds for gas * price + value"}

	hash, err := gw.PurchaseFilm(context.Background(), "testnet", signer, big.NewInt(1))
	var txErr *chain.TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, chain.OutcomeFailed, txErr.Outcome)
	assert.Equal(t, common.Hash{}, hash)
	assert.False(t, txErr.HasHash())
	assert.Empty(t, fake.Calls())

	fake.RejectSend = &chaintest.RPCError{Code: -32000, Message: "already known"}
	hash, err = gw.PurchaseFilm(context.Background(), "testnet", signer, big.NewInt(1))
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, chain.OutcomeUnknown, txErr.Outcome)
	assert.Equal(t, hash, txErr.Hash)
}
