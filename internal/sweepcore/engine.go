package sweepcore

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ligun0805/wallet-sweep/internal/endpoint"
	"github.com/ligun0805/wallet-sweep/internal/retry"
)

const (
	DefaultWorkers        = 5
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultPollInterval   = 2 * time.Second
)

var (
	ErrNotConnected = errors.New("connector has no active endpoint")
	errCancelled    = errors.New("run cancelled before this wallet was processed")
)

// Recorder persists finished attempts. Calls come from one goroutine.
type Recorder interface {
	Record(a TransferAttempt) error
}

type RecorderFunc func(TransferAttempt) error

func (f RecorderFunc) Record(a TransferAttempt) error { return f(a) }

type Options struct {
	Workers        int
	ChainID        *big.Int
	Fees           Fees
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Retry          retry.Policy
	// Limiter throttles every RPC issued by the engine. Nil means unlimited.
	Limiter   *rate.Limiter
	Recorders []Recorder
}

// Engine sweeps native balances to one destination.
// A run's state lives on the stack of Sweep; the engine itself only holds
// configuration and the subscribers of the next run.
type Engine struct {
	conn *endpoint.Connector
	opts Options

	mu        sync.Mutex
	bus       *bus
	recorders []Recorder
}

func New(conn *endpoint.Connector, opts Options) (*Engine, error) {
	if conn == nil {
		return nil, errors.New("nil connector")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.Default()
	}
	if opts.Retry.Classify == nil {
		opts.Retry.Classify = retry.ClassifyRPC
	}
	if opts.Fees.GasLimit == 0 {
		opts.Fees.GasLimit = DefaultGasLimit
	}
	if err := opts.Fees.Validate(); err != nil {
		return nil, errors.Wrap(err, "fees")
	}
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}
	return &Engine{conn: conn, opts: opts, bus: &bus{}, recorders: append([]Recorder(nil), opts.Recorders...)}, nil
}

func (e *Engine) Options() Options { return e.opts }

// Subscribe registers a listener for the next Sweep. The channel is closed
// when that Sweep returns, even on error, and must be drained until then.
func (e *Engine) Subscribe(buf int) <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bus.subscribe(buf)
}

// AddRecorder appends rec to the recorders of later runs.
func (e *Engine) AddRecorder(rec Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorders = append(e.recorders, rec)
}

func (e *Engine) takeBus() (*bus, []Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.bus
	e.bus = &bus{}
	return b, append([]Recorder(nil), e.recorders...)
}

type run struct {
	id      string
	total   int
	dest    common.Address
	reserve *big.Int
	bus     *bus
	log     zerolog.Logger
}

func (r *run) emit(ev Event) {
	ev.RunID = r.id
	ev.Total = r.total
	r.bus.publish(ev)
}

// Sweep processes every credential once with at most Workers in flight
// and returns the summary. Results arrive in completion order.
// Cancelling ctx stops new wallets from starting: those are recorded as
// failed without touching the network. A wallet that has already started
// runs on a context detached from ctx and reaches a terminal state, bounded
// by ConfirmTimeout once its transaction is submitted.
func (e *Engine) Sweep(ctx context.Context, dest common.Address, reserve *big.Int, creds []Credential) (*RunSummary, error) {
	b, recorders := e.takeBus()
	defer b.close()
	if e.conn.Active() == nil {
		return nil, ErrNotConnected
	}
	if reserve == nil || reserve.Sign() < 0 {
		return nil, errors.New("fee reserve must not be negative")
	}
	r := &run{
		id:      uuid.NewString(),
		total:   len(creds),
		dest:    dest,
		reserve: new(big.Int).Set(reserve),
		bus:     b,
	}
	r.log = log.With().Str("run_id", r.id).Logger()

	started := time.Now()
	summary := newSummary(r.id, len(creds), started)
	r.log.Info().
		Int("wallets", len(creds)).
		Int("workers", e.opts.Workers).
		Str("destination", dest.Hex()).
		Str("reserve_eth", fmtETH(r.reserve)).
		Msg("SweepEngine: run started")
	r.emit(Event{Index: -1, Phase: PhaseRunStarted})

	results := make(chan TransferAttempt, e.opts.Workers)
	reduced := make(chan struct{})
	go func() {
		defer close(reduced)
		for a := range results {
			summary.add(a)
			for _, rec := range recorders {
				if err := rec.Record(a); err != nil {
					r.log.Error().Err(err).Str("address", a.Address.Hex()).Msg("SweepEngine: failed to record attempt")
				}
			}
			r.emit(Event{
				Index: a.Index, Address: a.Address, Phase: PhaseDone, Status: a.Status,
				Balance: a.Balance, Amount: a.Amount, TxHash: a.TxHash, Err: a.Err,
			})
		}
	}()

	// ctx only gates dispatch. Started wallets must not abandon a
	// transaction that may already be on chain.
	work := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, c := range creds {
		if ctx.Err() != nil {
			results <- cancelledAttempt(i, c)
			continue
		}
		g.Go(func() error {
			// g.Go may have blocked on a free slot while ctx was cancelled.
			if ctx.Err() != nil {
				results <- cancelledAttempt(i, c)
				return nil
			}
			results <- e.sweepOne(work, r, i, c)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-reduced

	summary.Elapsed = time.Since(started)
	r.log.Info().
		Int("total", summary.Total).
		Int("sent", summary.Sent()).
		Int("skipped", summary.Skipped()).
		Int("failed", summary.Failed()).
		Str("amount_eth", summary.AmountSentETH()).
		Dur("elapsed", summary.Elapsed).
		Msg("SweepEngine: run finished")
	r.emit(Event{Index: -1, Phase: PhaseRunFinished, Summary: summary})
	return summary, nil
}

func cancelledAttempt(i int, c Credential) TransferAttempt {
	now := time.Now()
	return TransferAttempt{
		Index: i, Address: c.Address(), Balance: new(big.Int), Amount: new(big.Int),
		Status: StatusFailed, Err: errCancelled.Error(), Started: now, Finished: now,
	}
}

func (e *Engine) sweepOne(ctx context.Context, r *run, i int, c Credential) (out TransferAttempt) {
	out = TransferAttempt{
		Index:   i,
		Address: c.Address(),
		Balance: new(big.Int),
		Amount:  new(big.Int),
		Started: time.Now(),
	}
	lg := r.log.With().Str("address", out.Address.Hex()).Int("index", i).Logger()
	fail := func(err error) TransferAttempt {
		out.Status = StatusFailed
		out.Err = err.Error()
		lg.Warn().Err(err).Msg("SweepEngine: wallet failed")
		return out
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = fail(errors.Errorf("panic: %v", rec))
		}
		out.Finished = time.Now()
	}()

	if !c.valid() {
		return fail(errors.New("credential has no key"))
	}
	r.emit(Event{Index: i, Address: out.Address, Phase: PhaseStart})

	balance, err := e.balance(ctx, r, i, out.Address)
	if err != nil {
		return fail(errors.Wrap(err, "balance query"))
	}
	out.Balance = balance
	r.emit(Event{Index: i, Address: out.Address, Phase: PhaseBalance, Balance: cloneBig(balance)})

	if balance.Sign() <= 0 {
		out.Status = StatusSkippedZeroBalance
		lg.Debug().Msg("SweepEngine: zero balance, skipped")
		return out
	}
	amount := SendAmount(balance, r.reserve)
	if amount.Sign() <= 0 {
		out.Status = StatusSkippedInsufficient
		lg.Debug().Str("balance_wei", balance.String()).Msg("SweepEngine: balance does not cover the fee reserve, skipped")
		return out
	}
	out.Amount = amount

	// Nonce is read after any reconnect so it reflects the node we submit to.
	nonce, err := e.nonce(ctx, r, out.Address)
	if err != nil {
		return fail(errors.Wrap(err, "nonce query"))
	}
	signed, err := signTx(buildTransfer(e.opts.Fees, e.opts.ChainID, nonce, r.dest, amount), e.opts.ChainID, c.key)
	if err != nil {
		return fail(errors.Wrap(err, "sign"))
	}
	hash := signed.Hash()
	r.emit(Event{Index: i, Address: out.Address, Phase: PhaseSigned, Amount: cloneBig(amount), TxHash: hash})

	url, err := e.submit(ctx, r, i, out.Address, signed)
	if err != nil {
		return fail(errors.Wrapf(err, "submit %s", hash.Hex()))
	}
	out.Endpoint = url
	out.TxHash = hash
	lg.Info().Str("tx_hash", hash.Hex()).Str("amount_wei", amount.String()).Msg("SweepEngine: transaction submitted")
	r.emit(Event{Index: i, Address: out.Address, Phase: PhaseSubmitted, Amount: cloneBig(amount), TxHash: hash})

	receipt, err := e.waitForReceipt(ctx, hash)
	if err != nil {
		return fail(err)
	}
	if receipt.BlockNumber != nil {
		out.Block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fail(errors.Errorf("transaction %s reverted in block %d", hash.Hex(), out.Block))
	}
	out.Status = StatusSent
	lg.Info().
		Str("tx_hash", hash.Hex()).
		Uint64("block", out.Block).
		Str("amount_eth", fmtETH(amount)).
		Msg("SweepEngine: transfer confirmed")
	return out
}

func (e *Engine) client() (endpoint.Client, string) {
	a := e.conn.Active()
	if a == nil {
		return nil, ""
	}
	return a.Client, a.URL
}

func (e *Engine) throttle(ctx context.Context) error {
	if e.opts.Limiter == nil {
		return nil
	}
	return e.opts.Limiter.Wait(ctx)
}

func (e *Engine) policy(lg zerolog.Logger, op string) retry.Policy {
	p := e.opts.Retry
	user := p.OnRetry
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		lg.Debug().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("SweepEngine: retrying")
		if user != nil {
			user(attempt, wait, err)
		}
	}
	return p
}

// balance retries on the active endpoint, then reconnects once and makes
// one more call before giving up.
func (e *Engine) balance(ctx context.Context, r *run, i int, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	call := func(ctx context.Context) error {
		if err := e.throttle(ctx); err != nil {
			return err
		}
		cl, _ := e.client()
		if cl == nil {
			return ErrNotConnected
		}
		b, err := cl.BalanceAt(ctx, addr, nil)
		if err != nil {
			return err
		}
		bal = b
		return nil
	}
	err := retry.Do(ctx, e.policy(r.log, "balance"), call)
	if err == nil {
		return bal, nil
	}
	if ctx.Err() != nil || retry.ClassifyRPC(err) == retry.Fatal {
		return nil, err
	}
	r.emit(Event{Index: i, Address: addr, Phase: PhaseReconnect, Err: err.Error()})
	if _, rerr := e.conn.Reconnect(ctx); rerr != nil {
		return nil, errors.Wrapf(rerr, "after %v", err)
	}
	if err := call(ctx); err != nil {
		return nil, err
	}
	return bal, nil
}

func (e *Engine) nonce(ctx context.Context, r *run, addr common.Address) (uint64, error) {
	var n uint64
	err := retry.Do(ctx, e.policy(r.log, "nonce"), func(ctx context.Context) error {
		if err := e.throttle(ctx); err != nil {
			return err
		}
		cl, _ := e.client()
		if cl == nil {
			return ErrNotConnected
		}
		v, err := cl.PendingNonceAt(ctx, addr)
		if err != nil {
			return err
		}
		n = v
		return nil
	})
	return n, err
}

// submit broadcasts the same signed bytes until accepted. A node that
// already holds the transaction counts as accepted.
func (e *Engine) submit(ctx context.Context, r *run, i int, addr common.Address, tx *types.Transaction) (string, error) {
	var url string
	send := func(ctx context.Context) error {
		if err := e.throttle(ctx); err != nil {
			return err
		}
		cl, u := e.client()
		if cl == nil {
			return ErrNotConnected
		}
		err := cl.SendTransaction(ctx, tx)
		if err != nil && !isAlreadyKnown(err) {
			return err
		}
		url = u
		return nil
	}
	err := retry.Do(ctx, e.policy(r.log, "submit"), send)
	if err == nil {
		return url, nil
	}
	if ctx.Err() != nil || !retry.Transient(err) {
		return "", err
	}
	r.emit(Event{Index: i, Address: addr, Phase: PhaseReconnect, TxHash: tx.Hash(), Err: err.Error()})
	if _, rerr := e.conn.Reconnect(ctx); rerr != nil {
		return "", errors.Wrapf(rerr, "after %v", err)
	}
	if err := send(ctx); err != nil {
		return "", err
	}
	return url, nil
}

func isAlreadyKnown(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already known") || strings.Contains(s, "known transaction") ||
		strings.Contains(s, "already imported")
}

// waitForReceipt polls until the receipt shows up or ConfirmTimeout passes.
// Lookup errors other than not-found are treated as transient.
func (e *Engine) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if err := e.throttle(ctx); err == nil {
			if cl, _ := e.client(); cl != nil {
				receipt, err := cl.TransactionReceipt(ctx, hash)
				if err == nil && receipt != nil {
					return receipt, nil
				}
				if err != nil && !errors.Is(err, ethereum.NotFound) {
					lastErr = err
				}
			}
		}
		select {
		case <-ctx.Done():
			msg := fmt.Sprintf("confirmation timeout after %s, transaction %s may still be pending", e.opts.ConfirmTimeout, hash.Hex())
			if lastErr != nil {
				return nil, errors.Wrap(lastErr, msg)
			}
			return nil, errors.New(msg)
		case <-ticker.C:
		}
	}
}
