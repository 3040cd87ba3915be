package metrics

import (
	"context"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

// Metrics turns engine events into Prometheus series.
type Metrics struct {
	Registry *prometheus.Registry

	attempts  *prometheus.CounterVec
	sentWei   prometheus.Counter
	inflight  prometheus.Gauge
	reconnect prometheus.Counter
	duration  prometheus.Histogram

	mu      sync.Mutex
	started map[int]struct{}
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		started:  map[int]struct{}{},
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "attempts_total",
			Help:      "Finished wallet attempts by terminal status.",
		}, []string{"status"}),
		sentWei: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "sent_wei_total",
			Help:      "Native amount transferred, in wei.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sweep",
			Name:      "wallets_in_flight",
			Help:      "Wallets currently being processed.",
		}),
		reconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "reconnects_total",
			Help:      "Endpoint reconnects requested by workers.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sweep",
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	m.Registry.MustRegister(m.attempts, m.sentWei, m.inflight, m.reconnect, m.duration)
	for _, st := range core.Statuses {
		m.attempts.WithLabelValues(string(st))
	}
	return m
}

// Observe updates the series for one event.
func (m *Metrics) Observe(ev core.Event) {
	switch ev.Phase {
	case core.PhaseStart:
		m.mu.Lock()
		m.started[ev.Index] = struct{}{}
		m.mu.Unlock()
		m.inflight.Inc()
	case core.PhaseReconnect:
		m.reconnect.Inc()
	case core.PhaseDone:
		// wallets cancelled before starting never emitted PhaseStart
		m.mu.Lock()
		if _, ok := m.started[ev.Index]; ok {
			delete(m.started, ev.Index)
			m.inflight.Dec()
		}
		m.mu.Unlock()
		m.attempts.WithLabelValues(string(ev.Status)).Inc()
		if ev.Status == core.StatusSent && ev.Amount != nil {
			f, _ := new(big.Float).SetInt(ev.Amount).Float64()
			m.sentWei.Add(f)
		}
	case core.PhaseRunStarted:
		m.mu.Lock()
		m.started = map[int]struct{}{}
		m.mu.Unlock()
	case core.PhaseRunFinished:
		if ev.Summary != nil {
			m.duration.Observe(ev.Summary.Elapsed.Seconds())
		}
	}
}

// Consume drains events until the channel closes.
func (m *Metrics) Consume(events <-chan core.Event) {
	for ev := range events {
		m.Observe(ev)
	}
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Metrics: serving /metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}
