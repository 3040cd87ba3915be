// Package mockchain is an in-memory EVM ledger that satisfies
// endpoint.Client, used by tests.
package mockchain

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/ligun0805/wallet-sweep/internal/endpoint"
)

// MockChain keeps balances and nonces. Every transaction is mined
// immediately unless PendingPolls says otherwise.
type MockChain struct {
	chainID *big.Int
	signer  types.Signer

	mu       sync.Mutex
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
	block    uint64

	down         map[string]bool
	balanceFails map[common.Address]int
	sendErr      func(tx *types.Transaction) error

	// BalanceDelay slows BalanceAt so tests can observe concurrency.
	BalanceDelay time.Duration
	// PendingPolls is how many receipt lookups return NotFound first.
	PendingPolls int
	// Revert marks every mined transaction as failed.
	Revert bool
	// LoseAcks mines the next n transactions but reports a timeout to the sender.
	LoseAcks int

	inflight    atomic.Int64
	maxInflight atomic.Int64
	probes      atomic.Int64
	closed      atomic.Int64
}

func New(chainID int64) *MockChain {
	id := big.NewInt(chainID)
	return &MockChain{
		chainID:      id,
		signer:       types.LatestSignerForChainID(id),
		balances:     map[common.Address]*big.Int{},
		nonces:       map[common.Address]uint64{},
		receipts:     map[common.Hash]*types.Receipt{},
		polls:        map[common.Hash]int{},
		down:         map[string]bool{},
		balanceFails: map[common.Address]int{},
		block:        1,
	}
}

func (m *MockChain) Fund(addr common.Address, wei *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] = new(big.Int).Set(wei)
}

func (m *MockChain) Balance(addr common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// SetDown makes every client dialed for url fail its probe and calls.
func (m *MockChain) SetDown(url string, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down[url] = down
}

// FailBalance makes the next n BalanceAt calls for addr fail.
func (m *MockChain) FailBalance(addr common.Address, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceFails[addr] = n
}

// FailSend installs a hook consulted before a transaction is accepted.
func (m *MockChain) FailSend(fn func(tx *types.Transaction) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = fn
}

// Sent returns accepted transactions in submission order.
func (m *MockChain) Sent() []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Transaction(nil), m.sent...)
}

func (m *MockChain) MaxInflight() int64 { return m.maxInflight.Load() }
func (m *MockChain) Probes() int64      { return m.probes.Load() }
func (m *MockChain) Closed() int64      { return m.closed.Load() }

// Dialer hands out clients bound to this chain.
func (m *MockChain) Dialer() endpoint.Dialer {
	return func(_ context.Context, url string) (endpoint.Client, error) {
		return &Client{chain: m, url: url}, nil
	}
}

// Client is one connection to the mock chain.
type Client struct {
	chain *MockChain
	url   string
}

func (c *Client) isDown() bool {
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	return c.chain.down[c.url]
}

var errDown = errors.New("dial tcp: connection refused")

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.chain.probes.Add(1)
	if c.isDown() {
		return nil, errDown
	}
	return new(big.Int).Set(c.chain.chainID), nil
}

func (c *Client) BalanceAt(ctx context.Context, addr common.Address, _ *big.Int) (*big.Int, error) {
	m := c.chain
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		cur := m.maxInflight.Load()
		if n <= cur || m.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.BalanceDelay > 0 {
		select {
		case <-time.After(m.BalanceDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.isDown() {
		return nil, errDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceFails[addr] > 0 {
		m.balanceFails[addr]--
		return nil, errors.New("503 service unavailable")
	}
	if b, ok := m.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	if c.isDown() {
		return 0, errDown
	}
	m := c.chain
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonces[addr], nil
}

// SendTransaction checks signature, nonce and funds like a node would,
// then mines the transaction charging the full fee cap.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if c.isDown() {
		return errDown
	}
	m := c.chain
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		if err := m.sendErr(tx); err != nil {
			return err
		}
	}
	if _, ok := m.receipts[tx.Hash()]; ok {
		return errors.New("already known")
	}
	if tx.ChainId().Cmp(m.chainID) != 0 {
		return errors.New("invalid chain id")
	}
	from, err := types.Sender(m.signer, tx)
	if err != nil {
		return errors.Wrap(err, "invalid sender")
	}
	if tx.Nonce() < m.nonces[from] {
		return errors.New("nonce too low")
	}
	cost := new(big.Int).Add(tx.Value(), new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasFeeCap()))
	bal := m.balances[from]
	if bal == nil || bal.Cmp(cost) < 0 {
		return errors.New("insufficient funds for gas * price + value")
	}
	m.balances[from] = new(big.Int).Sub(bal, cost)
	if to := tx.To(); to != nil {
		dst := m.balances[*to]
		if dst == nil {
			dst = new(big.Int)
		}
		m.balances[*to] = new(big.Int).Add(dst, tx.Value())
	}
	m.nonces[from] = tx.Nonce() + 1
	m.block++
	status := types.ReceiptStatusSuccessful
	if m.Revert {
		status = types.ReceiptStatusFailed
	}
	m.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas(),
		BlockNumber: new(big.Int).SetUint64(m.block),
	}
	m.sent = append(m.sent, tx)
	if m.LoseAcks > 0 {
		m.LoseAcks--
		return errors.New("read tcp: i/o timeout")
	}
	return nil
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if c.isDown() {
		return nil, errDown
	}
	m := c.chain
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if m.polls[hash] < m.PendingPolls {
		m.polls[hash]++
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Client) Close() { c.chain.closed.Add(1) }
