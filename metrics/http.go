package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPort is the default port for the embedded exposition server.
const DefaultPort = 9090

// ServeMetrics starts an HTTP server exposing GET /metrics in
// Prometheus text format; any other path returns 404. The caller is
// responsible for calling Shutdown on the returned server.
func (r *Registry) ServeMetrics(addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	handler := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/metrics" {
			http.NotFound(w, req)
			return
		}
		handler.ServeHTTP(w, req)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to listen on %s: %w", addr, err)
	}

	go func() {
		_ = srv.Serve(ln)
	}()

	return srv, nil
}

// Shutdown gracefully stops a server started by ServeMetrics.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
