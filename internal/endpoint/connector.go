package endpoint

import (
	"context"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrNoEndpointAvailable is returned when no candidate passes the liveness probe.
var ErrNoEndpointAvailable = errors.New("no RPC endpoint available")

// Client is the subset of *ethclient.Client a sweep needs.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dialer opens a client for one endpoint URL.
type Dialer func(ctx context.Context, url string) (Client, error)

// Active is the handle selected by the last successful probe.
type Active struct {
	URL     string
	Client  Client
	ChainID *big.Int
}

// Connector picks the first live endpoint from an ordered list and
// swaps it out on Reconnect.
type Connector struct {
	urls         []string
	dial         Dialer
	probeTimeout time.Duration

	active  atomic.Pointer[Active]
	group   singleflight.Group
	mu      sync.Mutex
	opened  []Client
	probes  atomic.Int64
	onProbe func(url string, err error)
}

type Option func(*Connector)

// WithDialer replaces the default HTTP dialer.
func WithDialer(d Dialer) Option { return func(c *Connector) { c.dial = d } }

// WithProbeTimeout bounds every dial+probe pair.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithProbeHook is called after every probe, err nil on success.
func WithProbeHook(fn func(url string, err error)) Option {
	return func(c *Connector) { c.onProbe = fn }
}

func NewConnector(urls []string, opts ...Option) *Connector {
	c := &Connector{
		urls:         append([]string(nil), urls...),
		dial:         DialHTTP,
		probeTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect selects the first candidate, in list order, that answers eth_chainId.
func (c *Connector) Connect(ctx context.Context) (*Active, error) {
	a, err := c.selectEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	c.active.Store(a)
	return a, nil
}

// Reconnect reruns the selection. Concurrent callers share one probe
// sequence and all receive its result. Callers holding the old handle
// keep using it; the old client is closed only by Close.
func (c *Connector) Reconnect(ctx context.Context) (*Active, error) {
	v, err, _ := c.group.Do("reconnect", func() (interface{}, error) {
		a, err := c.selectEndpoint(ctx)
		if err != nil {
			return nil, err
		}
		c.active.Store(a)
		log.Info().Str("url", a.URL).Msg("Connector: switched endpoint")
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Active), nil
}

// Active returns the current handle or nil before Connect.
func (c *Connector) Active() *Active { return c.active.Load() }

// Probes counts dial+probe attempts, failed ones included.
func (c *Connector) Probes() int64 { return c.probes.Load() }

// Close releases every client this connector has opened.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range c.opened {
		cl.Close()
	}
	c.opened = nil
}

func (c *Connector) selectEndpoint(ctx context.Context) (*Active, error) {
	if len(c.urls) == 0 {
		return nil, errors.Wrap(ErrNoEndpointAvailable, "empty endpoint list")
	}
	var lastErr error
	for _, url := range c.urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := c.probe(ctx, url)
		if c.onProbe != nil {
			c.onProbe(url, err)
		}
		if err != nil {
			log.Warn().Str("url", url).Err(err).Msg("Connector: endpoint probe failed")
			lastErr = err
			continue
		}
		return a, nil
	}
	return nil, errors.Wrapf(ErrNoEndpointAvailable, "%d candidates tried, last error: %v", len(c.urls), lastErr)
}

func (c *Connector) probe(ctx context.Context, url string) (*Active, error) {
	c.probes.Add(1)
	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	cl, err := c.dial(pctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	id, err := cl.ChainID(pctx)
	if err != nil {
		cl.Close()
		return nil, errors.Wrap(err, "eth_chainId")
	}
	c.mu.Lock()
	c.opened = append(c.opened, cl)
	c.mu.Unlock()
	return &Active{URL: url, Client: cl, ChainID: id}, nil
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     30 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: 15 * time.Second}
}

// DialHTTP is the default Dialer: a pooled HTTP transport under ethclient.
func DialHTTP(ctx context.Context, url string) (Client, error) {
	rc, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(newHTTPClient()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize rpc client for %s", url)
	}
	return ethclient.NewClient(rc), nil
}
