package wallet

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"reelshare/pkg/apperr"
	"reelshare/pkg/chain"
	"reelshare/pkg/logger"
	"reelshare/pkg/metrics"
	"reelshare/pkg/money"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
	// StatusStale marks a cached last-good amount returned after a failed read.
	StatusStale Status = "stale"
)

const (
	NativeSymbol   = "NATIVE"
	nativeDecimals = 18
)

type Balance struct {
	Symbol    string       `json:"symbol"`
	Token     string       `json:"token,omitempty"`
	Amount    money.Amount `json:"amount"`
	Decimals  uint8        `json:"decimals"`
	Formatted string       `json:"formatted"`
	Status    Status       `json:"status"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Balances is keyed by network name, then token symbol.
type Balances map[string]map[string]Balance

type Reader interface {
	NativeBalance(ctx context.Context, network string, owner common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, network string, token, owner common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, network string, token common.Address) (uint8, error)
}

type Cache interface {
	Get(ctx context.Context, network, symbol string, owner common.Address) (*Balance, bool)
	Set(ctx context.Context, network, symbol string, owner common.Address, b Balance)
}

type Aggregator struct {
	reader  Reader
	cache   Cache
	log     *logger.Logger
	metrics *metrics.MarketMetrics
}

func NewAggregator(reader Reader, cache Cache, log *logger.Logger) *Aggregator {
	return &Aggregator{reader: reader, cache: cache, log: log, metrics: metrics.Market()}
}

type balanceRead struct {
	network string
	symbol  string
	token   *common.Address
}

// Aggregate reads the native balance and every configured token balance of
// address on each network in parallel. A failing read never turns into a
// zero: the entry carries StatusError, or StatusStale with the cached amount.
func (a *Aggregator) Aggregate(ctx context.Context, address string, networks []*chain.Network) (Balances, error) {
	if !common.IsHexAddress(address) {
		return nil, apperr.Validation("invalid wallet address %q", address)
	}
	owner := common.HexToAddress(address)

	var reads []balanceRead
	for _, n := range networks {
		reads = append(reads, balanceRead{network: n.Name, symbol: NativeSymbol})
		for symbol, token := range n.Tokens {
			token := token
			reads = append(reads, balanceRead{network: n.Name, symbol: symbol, token: &token})
		}
	}

	var mu sync.Mutex
	result := make(Balances, len(networks))
	for _, n := range networks {
		result[n.Name] = make(map[string]Balance)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range reads {
		r := r
		g.Go(func() error {
			b := a.read(gctx, owner, r)
			mu.Lock()
			result[r.network][r.symbol] = b
			mu.Unlock()
			a.metrics.ObserveBalanceRead(r.network, string(b.Status))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (a *Aggregator) read(ctx context.Context, owner common.Address, r balanceRead) Balance {
	b := Balance{Symbol: r.symbol}
	var (
		amount *big.Int
		err    error
	)
	if r.token == nil {
		b.Decimals = nativeDecimals
		amount, err = a.reader.NativeBalance(ctx, r.network, owner)
	} else {
		b.Token = r.token.Hex()
		b.Decimals, err = a.reader.TokenDecimals(ctx, r.network, *r.token)
		if err == nil {
			amount, err = a.reader.TokenBalance(ctx, r.network, *r.token, owner)
		}
	}

	if err != nil {
		a.log.Warn("Balance read %s/%s for %s failed: %v", r.network, r.symbol, ShortAddress(owner.Hex()), err)
		if a.cache != nil {
			if cached, ok := a.cache.Get(ctx, r.network, r.symbol, owner); ok {
				cached.Status = StatusStale
				cached.Error = err.Error()
				return *cached
			}
		}
		b.Status = StatusError
		b.Error = err.Error()
		return b
	}

	b.Amount = money.NewAmount(amount)
	b.Formatted = money.FormatDecimal(b.Amount, b.Decimals)
	b.Status = StatusOK
	b.UpdatedAt = time.Now().UTC()
	if a.cache != nil {
		a.cache.Set(ctx, r.network, r.symbol, owner, b)
	}
	return b
}
