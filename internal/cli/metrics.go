package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsReadHeaderTimeout = 5 * time.Second
	metricsShutdownTimeout   = 5 * time.Second
)

// metricsServer serves a Prometheus registry on /metrics.
type metricsServer struct {
	srv    *http.Server
	addr   string
	logger *slog.Logger
}

// serveMetrics starts serving reg on addr. The listener is bound before
// serveMetrics returns, so Addr reports the real port for ":0".
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	m := &metricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
		},
		addr:   ln.Addr().String(),
		logger: logger,
	}

	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", m.addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", m.addr)
	return m, nil
}

// Addr returns the bound listen address.
func (m *metricsServer) Addr() string {
	return m.addr
}

// Shutdown stops the server, waiting up to metricsShutdownTimeout for
// in-flight scrapes.
func (m *metricsServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
