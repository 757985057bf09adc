package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type FilmMetadata struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Genre       string         `json:"genre"`
	Duration    *big.Int       `json:"duration"`
	ReleaseDate *big.Int       `json:"releaseDate"`
	IpfsHash    string         `json:"ipfsHash"`
	Price       *big.Int       `json:"price"`
	Producer    common.Address `json:"producer"`
	Approved    bool           `json:"approved"`
}

type ContentRecord struct {
	Id           *big.Int       `json:"id"`
	Producer     common.Address `json:"producer"`
	Title        string         `json:"title"`
	IpfsHash     string         `json:"ipfsHash"`
	Views        *big.Int       `json:"views"`
	TotalRevenue *big.Int       `json:"totalRevenue"`
	Active       bool           `json:"active"`
}

type FilmParams struct {
	Title       string
	Description string
	Genre       string
	Duration    int64
	ReleaseDate time.Time
	ContentHash string
	Price       *big.Int
	TokenURI    string
}

// ---- reads ----

// call executes a view method, retrying transport failures with exponential
// backoff. Reverts and decoding failures are not retried.
func (g *Gateway) call(ctx context.Context, n *Network, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	var out []interface{}
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()

		started := time.Now()
		raw, err := n.client.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
		g.metrics.ObserveChainCall(n.Name, method, started, err)
		if err != nil {
			if revertReason(err) != "" {
				return backoff.Permanent(err)
			}
			return err
		}
		out, err = parsed.Unpack(method, raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, g.readPolicy(ctx)); err != nil {
		return nil, &ReadError{Network: n.Name, Method: method, Err: err}
	}
	return out, nil
}

func (g *Gateway) readPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.RetryInterval
	b.MaxInterval = 10 * g.opts.RetryInterval
	b.MaxElapsedTime = g.opts.CallTimeout
	return backoff.WithContext(backoff.WithMaxRetries(b, g.opts.ReadRetries), ctx)
}

func (g *Gateway) OwnerOf(ctx context.Context, network string, tokenID *big.Int) (common.Address, error) {
	n, err := g.Network(network)
	if err != nil {
		return common.Address{}, err
	}
	out, err := g.call(ctx, n, n.FilmContract, FilmABI, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// VerifyOwnership reports whether address currently owns the token.
func (g *Gateway) VerifyOwnership(ctx context.Context, network string, tokenID *big.Int, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, nil
	}
	owner, err := g.OwnerOf(ctx, network, tokenID)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(owner.Hex(), address), nil
}

func (g *Gateway) FilmMetadata(ctx context.Context, network string, tokenID *big.Int) (*FilmMetadata, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	out, err := g.call(ctx, n, n.FilmContract, FilmABI, "getFilmMetadata", tokenID)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(FilmMetadata)).(*FilmMetadata), nil
}

func (g *Gateway) RoyaltyInfo(ctx context.Context, network string, tokenID, salePrice *big.Int) (common.Address, *big.Int, error) {
	n, err := g.Network(network)
	if err != nil {
		return common.Address{}, nil, err
	}
	out, err := g.call(ctx, n, n.FilmContract, FilmABI, "royaltyInfo", tokenID, salePrice)
	if err != nil {
		return common.Address{}, nil, err
	}
	receiver := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	amount := abi.ConvertType(out[1], new(big.Int)).(*big.Int)
	return receiver, amount, nil
}

func (g *Gateway) Content(ctx context.Context, network string, contentID *big.Int) (*ContentRecord, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	out, err := g.call(ctx, n, n.ContentContract, ContentABI, "getContent", contentID)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(ContentRecord)).(*ContentRecord), nil
}

func (g *Gateway) TokenBalance(ctx context.Context, network string, token, owner common.Address) (*big.Int, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	out, err := g.call(ctx, n, token, ERC20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (g *Gateway) TokenDecimals(ctx context.Context, network string, token common.Address) (uint8, error) {
	n, err := g.Network(network)
	if err != nil {
		return 0, err
	}
	out, err := g.call(ctx, n, token, ERC20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (g *Gateway) Allowance(ctx context.Context, network string, token, owner, spender common.Address) (*big.Int, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	out, err := g.call(ctx, n, token, ERC20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (g *Gateway) NativeBalance(ctx context.Context, network string, owner common.Address) (*big.Int, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
		started := time.Now()
		var err error
		balance, err = n.client.BalanceAt(callCtx, owner, nil)
		g.metrics.ObserveChainCall(n.Name, "balance", started, err)
		return err
	}
	if err := backoff.Retry(op, g.readPolicy(ctx)); err != nil {
		return nil, &ReadError{Network: n.Name, Method: "balance", Err: err}
	}
	return balance, nil
}

// ---- writes ----

func (g *Gateway) send(ctx context.Context, network string, signer Signer, pick func(*Network) common.Address, parsed abi.ABI, method string, args ...interface{}) (common.Hash, error) {
	n, err := g.Network(network)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return g.transact(ctx, n, signer, pick(n), data, method)
}

func filmContract(n *Network) common.Address    { return n.FilmContract }
func contentContract(n *Network) common.Address { return n.ContentContract }
func paymentToken(n *Network) common.Address    { return n.PaymentToken }

// Approve grants spender an allowance on the network's payment token. The
// spender is the contract whose entrypoint pulls the funds.
func (g *Gateway) Approve(ctx context.Context, network string, signer Signer, spender common.Address, amount *big.Int) (common.Hash, error) {
	return g.send(ctx, network, signer, paymentToken, ERC20ABI, "approve", spender, amount)
}

func (g *Gateway) Transfer(ctx context.Context, network string, signer Signer, to common.Address, amount *big.Int) (common.Hash, error) {
	return g.send(ctx, network, signer, paymentToken, ERC20ABI, "transfer", to, amount)
}

func (g *Gateway) PurchaseFilm(ctx context.Context, network string, signer Signer, tokenID *big.Int) (common.Hash, error) {
	return g.send(ctx, network, signer, filmContract, FilmABI, "purchaseFilm", tokenID)
}

func (g *Gateway) TransferWithRoyalty(ctx context.Context, network string, signer Signer, tokenID *big.Int, to common.Address, price *big.Int) (common.Hash, error) {
	return g.send(ctx, network, signer, filmContract, FilmABI, "transferWithRoyalty", tokenID, to, price)
}

func (g *Gateway) DistributeRevenue(ctx context.Context, network string, signer Signer, contentID *big.Int) (common.Hash, error) {
	return g.send(ctx, network, signer, contentContract, ContentABI, "distributeRevenue", contentID)
}

func (g *Gateway) RecordView(ctx context.Context, network string, signer Signer, contentID *big.Int) (common.Hash, error) {
	return g.send(ctx, network, signer, contentContract, ContentABI, "recordView", contentID)
}

func (g *Gateway) ApproveFilm(ctx context.Context, network string, signer Signer, tokenID *big.Int) (common.Hash, error) {
	return g.send(ctx, network, signer, filmContract, FilmABI, "approveFilm", tokenID)
}

// SubmitCreate registers a content record and returns the contract-assigned id
// from the ContentCreated event.
func (g *Gateway) SubmitCreate(ctx context.Context, network string, signer Signer, title, contentHash string) (*big.Int, common.Hash, error) {
	hash, err := g.send(ctx, network, signer, contentContract, ContentABI, "createContent", title, contentHash)
	if err != nil {
		return nil, hash, err
	}
	receipt, err := g.WaitReceipt(ctx, network, hash, "createContent")
	if err != nil {
		return nil, hash, err
	}
	n, _ := g.Network(network)
	id, err := indexedID(receipt, n.ContentContract, ContentABI, "ContentCreated")
	return id, hash, err
}

// SubmitFilm mints a film token and returns its id from the FilmCreated event.
func (g *Gateway) SubmitFilm(ctx context.Context, network string, signer Signer, p FilmParams) (*big.Int, common.Hash, error) {
	price := p.Price
	if price == nil {
		price = new(big.Int)
	}
	hash, err := g.send(ctx, network, signer, filmContract, FilmABI, "createFilm",
		p.Title, p.Description, p.Genre, big.NewInt(p.Duration), big.NewInt(p.ReleaseDate.Unix()),
		p.ContentHash, price, p.TokenURI)
	if err != nil {
		return nil, hash, err
	}
	receipt, err := g.WaitReceipt(ctx, network, hash, "createFilm")
	if err != nil {
		return nil, hash, err
	}
	n, _ := g.Network(network)
	id, err := indexedID(receipt, n.FilmContract, FilmABI, "FilmCreated")
	return id, hash, err
}

// indexedID finds the named event emitted by contract and returns its first
// indexed topic as an integer id.
func indexedID(receipt *types.Receipt, contract common.Address, parsed abi.ABI, event string) (*big.Int, error) {
	ev, ok := parsed.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", event)
	}
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != contract || len(lg.Topics) < 2 || lg.Topics[0] != ev.ID {
			continue
		}
		if _, err := parsed.Unpack(event, lg.Data); err != nil {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[1].Bytes()), nil
	}
	return nil, &EventNotFoundError{Event: event, Hash: receipt.TxHash}
}

// DecodeFilmCreated decodes a FilmCreated log.
func DecodeFilmCreated(lg *types.Log) (tokenID *big.Int, producer common.Address, title string, price *big.Int, err error) {
	ev := FilmABI.Events["FilmCreated"]
	if len(lg.Topics) != 3 || lg.Topics[0] != ev.ID {
		return nil, common.Address{}, "", nil, errors.New("not a FilmCreated log")
	}
	values, err := FilmABI.Unpack("FilmCreated", lg.Data)
	if err != nil {
		return nil, common.Address{}, "", nil, err
	}
	tokenID = new(big.Int).SetBytes(lg.Topics[1].Bytes())
	producer = common.BytesToAddress(lg.Topics[2].Bytes())
	return tokenID, producer, values[0].(string), values[1].(*big.Int), nil
}

// DecodedCall is a mined transaction with its calldata decoded against the
// contract it was sent to. Method is empty when the destination is not a known
// contract or the calldata does not match its ABI.
type DecodedCall struct {
	From   common.Address
	To     common.Address
	Method string
	Args   []interface{}
}

// DecodeCall loads a transaction and decodes what it called.
func (g *Gateway) DecodeCall(ctx context.Context, network string, hash common.Hash) (*DecodedCall, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()
	tx, _, err := n.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, &ReadError{Network: n.Name, Method: "transactionByHash", Err: err}
	}
	if tx.To() == nil {
		return nil, fmt.Errorf("transaction %s is a contract creation", hash.Hex())
	}
	from, err := types.Sender(types.LatestSignerForChainID(n.ChainID), tx)
	if err != nil {
		return nil, err
	}

	call := &DecodedCall{From: from, To: *tx.To()}
	parsed, ok := n.contractABI(call.To)
	data := tx.Data()
	if !ok || len(data) < 4 {
		return call, nil
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return call, nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return call, nil
	}
	call.Method = method.Name
	call.Args = args
	return call, nil
}

func (n *Network) contractABI(addr common.Address) (abi.ABI, bool) {
	switch addr {
	case n.FilmContract:
		return FilmABI, true
	case n.ContentContract:
		return ContentABI, true
	case n.PaymentToken:
		return ERC20ABI, true
	}
	return abi.ABI{}, false
}

// TransferredFrom sums the ERC-20 Transfer events of token in receipt whose
// sender is from.
func TransferredFrom(receipt *types.Receipt, token, from common.Address) *big.Int {
	total := new(big.Int)
	if receipt == nil {
		return total
	}
	ev := ERC20ABI.Events["Transfer"]
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != token || len(lg.Topics) != 3 || lg.Topics[0] != ev.ID {
			continue
		}
		if common.BytesToAddress(lg.Topics[1].Bytes()) != from {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(lg.Data))
	}
	return total
}
