// Package chain talks to the EVM networks the marketplace settles on: it
// builds and signs contract calls, waits for receipts and decodes the events
// that carry contract-assigned identifiers.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"reelshare/pkg/apperr"
	"reelshare/pkg/config"
	"reelshare/pkg/logger"
	"reelshare/pkg/metrics"
)

// Client is the subset of ethclient.Client the gateway needs.
type Client interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

var _ Client = (*ethclient.Client)(nil)

// Network is one configured chain together with its client.
type Network struct {
	Name            string
	ChainID         *big.Int
	FilmContract    common.Address
	ContentContract common.Address
	PaymentToken    common.Address
	// Tokens lists ERC-20 tokens reported by balance aggregation, by symbol.
	Tokens map[string]common.Address

	client Client
}

func NewNetwork(cfg config.NetworkConfig, client Client) (*Network, error) {
	n := &Network{
		Name:    cfg.Name,
		ChainID: big.NewInt(cfg.ChainID),
		Tokens:  make(map[string]common.Address),
		client:  client,
	}
	for field, raw := range map[string]string{
		"film contract":    cfg.FilmContract,
		"content contract": cfg.ContentContract,
		"payment token":    cfg.PaymentToken,
	} {
		if raw != "" && !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("network %s: invalid %s address %q", cfg.Name, field, raw)
		}
	}
	n.FilmContract = common.HexToAddress(cfg.FilmContract)
	n.ContentContract = common.HexToAddress(cfg.ContentContract)
	n.PaymentToken = common.HexToAddress(cfg.PaymentToken)

	for symbol, raw := range cfg.Tokens {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("network %s: invalid token %s address %q", cfg.Name, symbol, raw)
		}
		n.Tokens[symbol] = common.HexToAddress(raw)
	}
	return n, nil
}

// DialNetworks connects an ethclient for every configured network.
func DialNetworks(cfgs []config.NetworkConfig) ([]*Network, error) {
	networks := make([]*Network, 0, len(cfgs))
	for _, cfg := range cfgs {
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", cfg.Name, err)
		}
		n, err := NewNetwork(cfg, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		networks = append(networks, n)
	}
	return networks, nil
}

type Options struct {
	CallTimeout    time.Duration
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	ReadRetries    uint64
	RetryInterval  time.Duration
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15 * time.Second
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = 2 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.ReadRetries == 0 {
		o.ReadRetries = 3
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 200 * time.Millisecond
	}
	return o
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CallTimeout:    cfg.ChainCallTimeout,
		ReceiptTimeout: cfg.ChainReceiptTimeout,
		PollInterval:   cfg.ChainPollInterval,
	}
}

type Gateway struct {
	networks map[string]*Network
	opts     Options
	log      *logger.Logger
	metrics  *metrics.MarketMetrics

	mu      sync.Mutex
	senders map[string]*sync.Mutex
}

func NewGateway(networks []*Network, log *logger.Logger, opts Options) *Gateway {
	g := &Gateway{
		networks: make(map[string]*Network, len(networks)),
		opts:     opts.withDefaults(),
		log:      log,
		metrics:  metrics.Market(),
		senders:  make(map[string]*sync.Mutex),
	}
	for _, n := range networks {
		g.networks[n.Name] = n
	}
	return g
}

func (g *Gateway) Network(name string) (*Network, error) {
	n, ok := g.networks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperr.Validation("unsupported network %q", name)
	}
	return n, nil
}

// Networks returns every configured network ordered by name.
func (g *Gateway) Networks() []*Network {
	out := make([]*Network, 0, len(g.networks))
	for _, n := range g.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// senderLock serializes nonce assignment and broadcast per account and chain.
func (g *Gateway) senderLock(network string, from common.Address) *sync.Mutex {
	key := network + "/" + from.Hex()
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.senders[key]
	if !ok {
		lock = &sync.Mutex{}
		g.senders[key] = lock
	}
	return lock
}
