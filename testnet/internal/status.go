package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StatusServer exposes a running harness over HTTP:
//
//   - GET /metrics: Prometheus metrics of the harness registry
//   - GET /status: state, node counts and messages received so far
//   - GET /summary: the results recorded so far
type StatusServer struct {
	server *http.Server
	l      net.Listener
	doneCh chan struct{}
	logger *logrus.Entry
}

// NewStatusServer listens on addr and routes requests to h.
func NewStatusServer(addr string, h *Harness) (*StatusServer, error) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(h.Metrics().Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.Status())
	}).Methods(http.MethodGet)
	r.HandleFunc("/summary", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.Summary())
	}).Methods(http.MethodGet)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &StatusServer{
		server: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		l:      l,
		doneCh: make(chan struct{}),
		logger: logrus.WithField("component", "status"),
	}, nil
}

// Serve blocks until the server is shut down.
func (s *StatusServer) Serve() error {
	select {
	case <-s.doneCh:
		return fmt.Errorf("tried to reuse a stopped server")
	default:
	}

	s.logger.WithField("addr", s.Addr()).Info("Status server listening")
	err := s.server.Serve(s.l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the listening address.
func (s *StatusServer) Addr() string {
	return s.l.Addr().String()
}

// Shutdown stops the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	defer close(s.doneCh)
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
