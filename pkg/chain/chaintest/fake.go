// Package chaintest provides an in-memory EVM client that understands the
// marketplace contracts, for use in tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"reelshare/pkg/chain"
	"reelshare/pkg/config"
)

var (
	FilmContract    = common.HexToAddress("0x00000000000000000000000000000000000f11a0")
	ContentContract = common.HexToAddress("0x00000000000000000000000000000000000c0e70")
	PaymentToken    = common.HexToAddress("0x0000000000000000000000000000000000005dc0")
)

// Call records one state-changing transaction the fake executed.
type Call struct {
	Method string
	From   common.Address
	Args   []interface{}
	Hash   common.Hash
}

type Film struct {
	Owner    common.Address
	Metadata chain.FilmMetadata
	// RoyaltyBps is applied by royaltyInfo, paid to Metadata.Producer.
	RoyaltyBps int64
}

// RevertError mimics the JSON-RPC error returned for a reverted call.
type RevertError struct{ Reason string }

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

func (e *RevertError) ErrorData() interface{} {
	typ, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: typ}}.Pack(e.Reason)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

// RPCError is an error answered by the node, as opposed to a transport failure.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string  { return e.Message }
func (e *RPCError) ErrorCode() int { return e.Code }

type Client struct {
	mu sync.Mutex

	ChainID  *big.Int
	Decimals uint8

	Films       map[string]*Film
	Native      map[common.Address]*big.Int
	Balances    map[common.Address]*big.Int
	Allowances  map[common.Address]map[common.Address]*big.Int
	nextContent int64
	nextToken   int64
	views       map[string]int64

	// RevertOnChain makes the named method mine with status 0.
	RevertOnChain map[string]string
	// RevertOnEstimate makes gas estimation for the named method fail.
	RevertOnEstimate map[string]string
	// SkipEvents mines creation calls without their events.
	SkipEvents bool
	// HoldReceipts keeps receipts pending until Mine is called.
	HoldReceipts bool
	// ReadErr fails every read.
	ReadErr error
	// TokenReadErr fails reads against one token contract.
	TokenReadErr map[common.Address]error
	// RejectSend is returned by SendTransaction without executing the call.
	RejectSend error
	// SendErr is returned by SendTransaction after the call was executed, as
	// when the connection drops once the node has accepted it.
	SendErr error

	nonces   map[common.Address]uint64
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	held     map[common.Hash]*types.Receipt
	block    int64
	calls    []Call
}

func New() *Client {
	return &Client{
		ChainID:          big.NewInt(31337),
		Decimals:         6,
		Films:            make(map[string]*Film),
		Native:           make(map[common.Address]*big.Int),
		Balances:         make(map[common.Address]*big.Int),
		Allowances:       make(map[common.Address]map[common.Address]*big.Int),
		nextContent:      1,
		nextToken:        1,
		RevertOnChain:    make(map[string]string),
		RevertOnEstimate: make(map[string]string),
		TokenReadErr:     make(map[common.Address]error),
		views:            make(map[string]int64),
		nonces:           make(map[common.Address]uint64),
		txs:              make(map[common.Hash]*types.Transaction),
		receipts:         make(map[common.Hash]*types.Receipt),
		held:             make(map[common.Hash]*types.Receipt),
		block:            100,
	}
}

// NetworkConfig describes the fake as a configured network.
func (c *Client) NetworkConfig(name string) config.NetworkConfig {
	return config.NetworkConfig{
		Name:            name,
		RPCURL:          "memory://" + name,
		ChainID:         c.ChainID.Int64(),
		FilmContract:    FilmContract.Hex(),
		ContentContract: ContentContract.Hex(),
		PaymentToken:    PaymentToken.Hex(),
		Tokens:          map[string]string{"USDC": PaymentToken.Hex()},
	}
}

// Network wraps the fake in a chain.Network.
func (c *Client) Network(name string) *chain.Network {
	n, err := chain.NewNetwork(c.NetworkConfig(name), c)
	if err != nil {
		panic(err)
	}
	return n
}

func (c *Client) SetBalance(owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[owner] = new(big.Int).Set(amount)
}

func (c *Client) SetAllowance(owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAllowance(owner, spender, amount)
}

func (c *Client) SetFilm(tokenID int64, film *Film) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Films[big.NewInt(tokenID).String()] = film
}

func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsTo returns the recorded calls of one method.
func (c *Client) CallsTo(method string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Mine releases held receipts.
func (c *Client) Mine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, r := range c.held {
		c.receipts[h] = r
		delete(c.held, h)
	}
}

func (c *Client) balance(owner common.Address) *big.Int {
	if b, ok := c.Balances[owner]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Client) allowance(owner, spender common.Address) *big.Int {
	if m, ok := c.Allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return new(big.Int)
}

func (c *Client) setAllowance(owner, spender common.Address, amount *big.Int) {
	if c.Allowances[owner] == nil {
		c.Allowances[owner] = make(map[common.Address]*big.Int)
	}
	c.Allowances[owner][spender] = new(big.Int).Set(amount)
}

func abiFor(to common.Address) abi.ABI {
	switch to {
	case FilmContract:
		return chain.FilmABI
	case ContentContract:
		return chain.ContentABI
	default:
		return chain.ERC20ABI
	}
}

func decode(to common.Address, data []byte) (abi.ABI, *abi.Method, []interface{}, error) {
	parsed := abiFor(to)
	if len(data) < 4 {
		return parsed, nil, nil, errors.New("missing selector")
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return parsed, nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return parsed, nil, nil, err
	}
	return parsed, method, args, nil
}

func (c *Client) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	if err, ok := c.TokenReadErr[*msg.To]; ok {
		return nil, err
	}
	_, method, args, err := decode(*msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	if reason, ok := c.RevertOnChain[method.Name]; ok {
		return nil, &RevertError{Reason: reason}
	}

	var out []interface{}
	switch method.Name {
	case "balanceOf":
		out = []interface{}{new(big.Int).Set(c.balance(args[0].(common.Address)))}
	case "allowance":
		out = []interface{}{new(big.Int).Set(c.allowance(args[0].(common.Address), args[1].(common.Address)))}
	case "decimals":
		out = []interface{}{c.Decimals}
	case "ownerOf":
		film, ok := c.Films[args[0].(*big.Int).String()]
		if !ok {
			return nil, &RevertError{Reason: "ERC721: invalid token ID"}
		}
		out = []interface{}{film.Owner}
	case "getFilmMetadata":
		film, ok := c.Films[args[0].(*big.Int).String()]
		if !ok {
			return nil, &RevertError{Reason: "ERC721: invalid token ID"}
		}
		meta := film.Metadata
		for _, v := range []**big.Int{&meta.Duration, &meta.ReleaseDate, &meta.Price} {
			if *v == nil {
				*v = new(big.Int)
			}
		}
		out = []interface{}{meta}
	case "royaltyInfo":
		film, ok := c.Films[args[0].(*big.Int).String()]
		if !ok {
			return nil, &RevertError{Reason: "ERC721: invalid token ID"}
		}
		royalty := new(big.Int).Mul(args[1].(*big.Int), big.NewInt(film.RoyaltyBps))
		royalty.Div(royalty, big.NewInt(10000))
		out = []interface{}{film.Metadata.Producer, royalty}
	case "getContent":
		out = []interface{}{chain.ContentRecord{
			Id:           args[0].(*big.Int),
			TotalRevenue: new(big.Int),
			Views:        big.NewInt(c.views[args[0].(*big.Int).String()]),
			Active:       true,
		}}
	default:
		return nil, fmt.Errorf("chaintest: %s is not a view method", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func (c *Client) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	if b, ok := c.Native[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (c *Client) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

func (c *Client) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *Client) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &types.Header{Number: big.NewInt(c.block), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (c *Client) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	_, method, _, err := decode(*msg.To, msg.Data)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if reason, ok := c.RevertOnEstimate[method.Name]; ok {
		return 0, &RevertError{Reason: reason}
	}
	return 100_000, nil
}

func (c *Client) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(c.ChainID), tx)
	if err != nil {
		return err
	}
	parsed, method, args, err := decode(*tx.To(), tx.Data())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.RejectSend != nil {
		return c.RejectSend
	}
	if tx.Nonce() != c.nonces[from] {
		return &RPCError{Code: -32000, Message: fmt.Sprintf("nonce too low: have %d want %d", tx.Nonce(), c.nonces[from])}
	}
	c.nonces[from]++
	c.block++

	receipt := &types.Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(c.block),
		Status:      types.ReceiptStatusSuccessful,
	}
	if _, ok := c.RevertOnChain[method.Name]; ok {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		c.calls = append(c.calls, Call{Method: method.Name, From: from, Args: args, Hash: tx.Hash()})
		receipt.Logs = c.apply(parsed, *tx.To(), method.Name, from, args)
	}

	c.txs[tx.Hash()] = tx
	if c.HoldReceipts {
		c.held[tx.Hash()] = receipt
	} else {
		c.receipts[tx.Hash()] = receipt
	}
	return c.SendErr
}

func (c *Client) apply(parsed abi.ABI, to common.Address, method string, from common.Address, args []interface{}) []*types.Log {
	switch method {
	case "approve":
		c.setAllowance(from, args[0].(common.Address), args[1].(*big.Int))
	case "transfer":
		amount := args[1].(*big.Int)
		c.Balances[from] = new(big.Int).Sub(c.balance(from), amount)
		dst := args[0].(common.Address)
		c.Balances[dst] = new(big.Int).Add(c.balance(dst), amount)
	case "purchaseFilm", "distributeRevenue":
		return c.pull(from, to)
	case "transferWithRoyalty":
		logs := c.pull(from, to)
		if film, ok := c.Films[args[0].(*big.Int).String()]; ok {
			film.Owner = args[1].(common.Address)
		}
		return logs
	case "createContent":
		id := big.NewInt(c.nextContent)
		c.nextContent++
		if c.SkipEvents {
			return nil
		}
		return []*types.Log{c.eventLog(parsed, to, "ContentCreated", id, from, args[0], args[1])}
	case "createFilm":
		id := big.NewInt(c.nextToken)
		c.nextToken++
		c.Films[id.String()] = &Film{
			Owner: from,
			Metadata: chain.FilmMetadata{
				Title:       args[0].(string),
				Description: args[1].(string),
				Genre:       args[2].(string),
				Duration:    args[3].(*big.Int),
				ReleaseDate: args[4].(*big.Int),
				IpfsHash:    args[5].(string),
				Price:       args[6].(*big.Int),
				Producer:    from,
			},
			RoyaltyBps: 1000,
		}
		if c.SkipEvents {
			return nil
		}
		return []*types.Log{c.eventLog(parsed, to, "FilmCreated", id, from, args[0], args[6])}
	case "recordView":
		c.views[args[0].(*big.Int).String()]++
	case "approveFilm":
		if film, ok := c.Films[args[0].(*big.Int).String()]; ok {
			film.Metadata.Approved = true
		}
	}
	return nil
}

// pull moves the whole allowance granted to the called contract and emits the
// token Transfer.
func (c *Client) pull(from, contract common.Address) []*types.Log {
	amount := new(big.Int).Set(c.allowance(from, contract))
	if amount.Sign() == 0 {
		return nil
	}
	c.Balances[from] = new(big.Int).Sub(c.balance(from), amount)
	c.Balances[contract] = new(big.Int).Add(c.balance(contract), amount)
	c.setAllowance(from, contract, new(big.Int))

	ev := chain.ERC20ABI.Events["Transfer"]
	data, err := ev.Inputs.NonIndexed().Pack(amount)
	if err != nil {
		panic(err)
	}
	return []*types.Log{{
		Address:     PaymentToken,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(from.Bytes()), common.BytesToHash(contract.Bytes())},
		Data:        data,
		BlockNumber: uint64(c.block),
	}}
}

func (c *Client) eventLog(parsed abi.ABI, contract common.Address, name string, id *big.Int, producer common.Address, data ...interface{}) *types.Log {
	ev := parsed.Events[name]
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(id),
			common.BytesToHash(producer.Bytes()),
		},
		Data:        packed,
		BlockNumber: uint64(c.block),
	}
}

func (c *Client) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (c *Client) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	_, pending := c.held[hash]
	return tx, pending, nil
}
