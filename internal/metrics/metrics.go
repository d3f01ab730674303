// Package metrics holds the Prometheus collectors for a migration run.
//
// Collectors are registered on Registry rather than the global default
// registerer so tests can read them without cross-package interference.
//
// Exposed series:
//   - migrator_items_total{outcome}: items finished, outcome=success|failure
//   - migrator_rpc_requests_total{method,status}: ledger JSON-RPC calls
//   - migrator_rpc_request_duration_seconds{method}: ledger JSON-RPC latency
//   - migrator_rpc_retries_total{error_class}: ledger retries
//   - migrator_relay_requests_total{status}: submission relay calls
//   - migrator_observer_panics_total: panics recovered from outcome observers
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var Registry = prometheus.NewRegistry()

var (
	ItemsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "migrator_items_total",
		Help: "Items finished by outcome",
	}, []string{"outcome"})

	RPCRequestsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "migrator_rpc_requests_total",
		Help: "Ledger JSON-RPC requests by method and status",
	}, []string{"method", "status"})

	RPCRequestDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "migrator_rpc_request_duration_seconds",
		Help:    "Ledger JSON-RPC request latency by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method"})

	RPCRetriesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "migrator_rpc_retries_total",
		Help: "Ledger JSON-RPC retry attempts by error class",
	}, []string{"error_class"})

	RelayRequestsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "migrator_relay_requests_total",
		Help: "Submission relay requests by status",
	}, []string{"status"})

	ObserverPanicsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "migrator_observer_panics_total",
		Help: "Panics recovered from outcome observers",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveRPC records one JSON-RPC round trip. status is an HTTP status code,
// or 0 when no response was received.
func ObserveRPC(method string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RPCRequestsTotal.WithLabelValues(method, label).Inc()
	RPCRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. It returns once the
// listener is bound so callers see bind errors synchronously.
func Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return nil
}
