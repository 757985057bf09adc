package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

const gasHeadroomPercent = 120

// transact builds, signs and broadcasts an EIP-1559 call. It is never retried:
// a broadcast whose fate is unclear is reported with OutcomeUnknown.
func (g *Gateway) transact(ctx context.Context, n *Network, signer Signer, to common.Address, data []byte, op string) (common.Hash, error) {
	from := signer.Address()
	lock := g.senderLock(n.Name, from)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()

	started := time.Now()
	hash, err := g.buildAndSend(ctx, n, signer, to, data, op)
	g.metrics.ObserveChainCall(n.Name, op, started, err)
	if err != nil {
		g.log.Error("Transaction %s on %s from %s failed: %v", op, n.Name, from.Hex(), err)
		return hash, err
	}
	g.log.Info("Transaction %s sent on %s: %s", op, n.Name, hash.Hex())
	return hash, nil
}

func (g *Gateway) buildAndSend(ctx context.Context, n *Network, signer Signer, to common.Address, data []byte, op string) (common.Hash, error) {
	from := signer.Address()
	failed := func(err error) error {
		return &TxError{Op: op, Network: n.Name, Outcome: OutcomeFailed, Reason: revertReason(err), Err: err}
	}

	gas, err := n.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, failed(err)
	}
	nonce, err := n.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, failed(err)
	}
	tip, err := n.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, failed(err)
	}
	head, err := n.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, failed(err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   n.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas * gasHeadroomPercent / 100,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})
	signed, err := signer.SignTx(tx, n.ChainID)
	if err != nil {
		return common.Hash{}, failed(err)
	}

	if err := n.client.SendTransaction(ctx, signed); err != nil {
		if rejected(err) {
			return common.Hash{}, failed(err)
		}
		// The node may have accepted the transaction before the connection failed.
		return signed.Hash(), &TxError{Op: op, Network: n.Name, Hash: signed.Hash(), Outcome: OutcomeUnknown, Err: err}
	}
	return signed.Hash(), nil
}

// rejected reports whether a send error is the node refusing the transaction,
// as opposed to a transport failure that leaves its fate open.
func rejected(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return !strings.Contains(strings.ToLower(err.Error()), "already known")
	}
	return revertReason(err) != ""
}

// WaitReceipt polls until the transaction is mined or the receipt timeout
// elapses. A reverted receipt is returned together with a TxError.
func (g *Gateway) WaitReceipt(ctx context.Context, network string, hash common.Hash, op string) (*types.Receipt, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.fetchReceipt(ctx, n, hash, op)
		if receipt != nil || err != nil {
			return receipt, err
		}
		select {
		case <-ctx.Done():
			g.log.Warn("Receipt for %s on %s not seen before timeout", hash.Hex(), n.Name)
			return nil, &TxError{Op: op, Network: n.Name, Hash: hash, Outcome: OutcomeUnknown, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// CheckReceipt looks for a receipt once. It returns (nil, nil) while the
// transaction is still pending.
func (g *Gateway) CheckReceipt(ctx context.Context, network string, hash common.Hash, op string) (*types.Receipt, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()
	return g.fetchReceipt(ctx, n, hash, op)
}

func (g *Gateway) fetchReceipt(ctx context.Context, n *Network, hash common.Hash, op string) (*types.Receipt, error) {
	receipt, err := n.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			g.log.Warn("Receipt lookup for %s on %s failed: %v", hash.Hex(), n.Name, err)
		}
		return nil, nil
	}
	if receipt == nil {
		return nil, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := g.replayRevert(ctx, n, hash, receipt.BlockNumber)
		return receipt, &TxError{Op: op, Network: n.Name, Hash: hash, Outcome: OutcomeFailed, Reason: reason, Err: errors.New("transaction reverted")}
	}
	return receipt, nil
}

// replayRevert re-executes a reverted transaction as a call at its block to
// recover the revert reason.
func (g *Gateway) replayRevert(ctx context.Context, n *Network, hash common.Hash, block *big.Int) string {
	const fallback = "execution reverted"
	tx, _, err := n.client.TransactionByHash(ctx, hash)
	if err != nil || tx == nil || tx.To() == nil {
		return fallback
	}
	from, err := types.Sender(types.LatestSignerForChainID(n.ChainID), tx)
	if err != nil {
		return fallback
	}
	_, err = n.client.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, block)
	if err == nil {
		return fallback
	}
	if reason := revertReason(err); reason != "" {
		return reason
	}
	return fallback
}

// revertReason extracts a readable reason from an RPC error, decoding the
// Error(string) payload when the node returns revert data.
func revertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr interface{ ErrorData() interface{} }
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if reason, uerr := abi.UnpackRevert(common.FromHex(raw)); uerr == nil {
				return reason
			}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		return strings.TrimSpace(msg[i:])
	}
	return ""
}
