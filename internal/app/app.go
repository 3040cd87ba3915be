package app

import (
	"context"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ligun0805/wallet-sweep/internal/config"
	"github.com/ligun0805/wallet-sweep/internal/endpoint"
	"github.com/ligun0805/wallet-sweep/internal/ledger"
	"github.com/ligun0805/wallet-sweep/internal/loader"
	"github.com/ligun0805/wallet-sweep/internal/metrics"
	"github.com/ligun0805/wallet-sweep/internal/present"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

// Observer receives every engine event of a run. It must drain the
// channel until it is closed.
type Observer func(events <-chan core.Event)

type RunOptions struct {
	// Dial overrides the HTTP dialer, mainly for tests.
	Dial endpoint.Dialer
	// Credentials, when set, are used instead of reading KeysFile.
	Credentials []core.Credential
	// Out receives presenter output; nil means stdout.
	Out       io.Writer
	Observers []Observer
	// NoPresenter skips the console presenter (GUI mode).
	NoPresenter bool
}

// Prepared is everything resolved before the first transfer.
type Prepared struct {
	Destination common.Address
	Credentials []core.Credential
	Conn        *endpoint.Connector
	Active      *endpoint.Active
	ChainID     *big.Int
	Fees        core.Fees
	Reserve     *big.Int
}

// Prepare loads inputs and connects. Any error here is fatal for the run
// and happens before the tx log is touched.
func Prepare(ctx context.Context, st config.Settings, opts RunOptions) (*Prepared, error) {
	dest, err := loader.LoadDestination(st.DestinationFile)
	if err != nil {
		return nil, err
	}
	creds := opts.Credentials
	if len(creds) == 0 {
		if creds, err = loader.LoadCredentials(st.KeysFile); err != nil {
			return nil, err
		}
	}
	fees, err := st.Fees()
	if err != nil {
		return nil, err
	}
	if err := fees.Validate(); err != nil {
		return nil, errors.Wrap(err, "fees")
	}

	connOpts := []endpoint.Option{endpoint.WithProbeTimeout(st.ProbeTimeout)}
	if opts.Dial != nil {
		connOpts = append(connOpts, endpoint.WithDialer(opts.Dial))
	}
	conn := endpoint.NewConnector(st.RPCURLs, connOpts...)
	active, err := conn.Connect(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	chainID := big.NewInt(st.ChainID)
	if st.ChainID == 0 {
		chainID = new(big.Int).Set(active.ChainID)
	} else if active.ChainID.Cmp(chainID) != 0 {
		log.Warn().
			Str("configured", chainID.String()).
			Str("reported", active.ChainID.String()).
			Str("url", active.URL).
			Msg("App: endpoint reports a different chain id, signing with the configured one")
	}

	log.Info().
		Str("url", active.URL).
		Str("chain_id", chainID.String()).
		Str("destination", dest.Hex()).
		Int("wallets", len(creds)).
		Msg("App: ready")

	return &Prepared{
		Destination: dest,
		Credentials: creds,
		Conn:        conn,
		Active:      active,
		ChainID:     chainID,
		Fees:        fees,
		Reserve:     fees.Reserve(),
	}, nil
}

func newEngine(st config.Settings, p *Prepared) (*core.Engine, error) {
	return core.New(p.Conn, core.Options{
		Workers:        st.Workers,
		ChainID:        p.ChainID,
		Fees:           p.Fees,
		ConfirmTimeout: st.ConfirmTimeout,
		PollInterval:   st.PollInterval,
		Retry:          st.RetryPolicy(),
		Limiter:        st.Limiter(),
	})
}

// Run performs one full sweep. Per-wallet failures are reported in the
// summary; only startup problems are returned as errors.
func Run(ctx context.Context, st config.Settings, opts RunOptions) (*core.RunSummary, error) {
	p, err := Prepare(ctx, st, opts)
	if err != nil {
		return nil, err
	}
	defer p.Conn.Close()

	// The ledger truncates the tx log, so it opens only once the engine
	// has accepted its options.
	engine, err := newEngine(st, p)
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(st.TxLogFile, st.ErrorLogFile)
	if err != nil {
		return nil, err
	}
	defer led.Close()
	engine.AddRecorder(led)

	var wg sync.WaitGroup
	attach := func(obs Observer) {
		ch := engine.Subscribe(64)
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs(ch)
		}()
	}
	if !opts.NoPresenter {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		attach(present.Pick(st.UI, out).Consume)
	}
	if st.MetricsAddr != "" {
		m := metrics.New()
		attach(m.Consume)
		mctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := m.Serve(mctx, st.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("App: metrics server stopped")
			}
		}()
	}
	for _, obs := range opts.Observers {
		attach(obs)
	}

	summary, err := engine.Sweep(ctx, p.Destination, p.Reserve, p.Credentials)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Check connects and previews every wallet without sending anything.
func Check(ctx context.Context, st config.Settings, opts RunOptions) (*Prepared, []core.Plan, error) {
	p, err := Prepare(ctx, st, opts)
	if err != nil {
		return nil, nil, err
	}
	defer p.Conn.Close()

	engine, err := newEngine(st, p)
	if err != nil {
		return nil, nil, err
	}
	plans, err := engine.Preview(ctx, p.Reserve, p.Credentials)
	return p, plans, err
}
