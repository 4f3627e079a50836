package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/penf-coref/pkg/buildinfo"
)

// NewMux serves /metrics from gatherer, /version and /healthz.
func NewMux(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/version", buildinfo.Handler(buildinfo.ServiceName))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) // nolint: errcheck
	})
	return mux
}

// MetricsServer exposes NewMux on an address for the life of a batch.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	done     chan error
}

// StartMetricsServer listens on addr and serves in the background.
func StartMetricsServer(addr string, gatherer prometheus.Gatherer) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &MetricsServer{
		server: &http.Server{
			Handler:           NewMux(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		done:     make(chan error, 1),
	}
	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return s, nil
}

// Addr returns the address the server listens on.
func (s *MetricsServer) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}
