package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"gonetids/internal/analysis"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Exporter serves the recorder over HTTP together with the last summary.
type Exporter struct {
	server *http.Server
	router *mux.Router
	logger *logrus.Entry
	addr   string

	listener net.Listener

	mu      sync.RWMutex
	summary *analysis.Summary
}

// NewExporter builds the HTTP routes; call Listen and Start to serve them.
func NewExporter(addr string, rec *Recorder, logger *logrus.Logger) *Exporter {
	e := &Exporter{
		addr:   addr,
		logger: logger.WithField("component", "metrics"),
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/summary", e.serveSummary).Methods(http.MethodGet)

	e.router = router
	e.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return e
}

// Handler returns the routes without starting a listener.
func (e *Exporter) Handler() http.Handler {
	return e.router
}

// SetSummary publishes the summary served at /summary.
func (e *Exporter) SetSummary(s analysis.Summary) {
	e.mu.Lock()
	e.summary = &s
	e.mu.Unlock()
}

func (e *Exporter) serveSummary(w http.ResponseWriter, r *http.Request) {
	e.mu.RLock()
	s := e.summary
	e.mu.RUnlock()

	if s == nil {
		http.Error(w, "no analysis available yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		e.logger.WithError(err).Error("Failed to encode summary")
	}
}

// Listen binds the address so that a busy port is reported before the
// capture starts.
func (e *Exporter) Listen() error {
	if e.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return fmt.Errorf("metrics exporter cannot listen on %s: %w", e.addr, err)
	}
	e.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (e *Exporter) Addr() string {
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}

// Start serves until ctx is canceled, then shuts the server down.
func (e *Exporter) Start(ctx context.Context) error {
	if err := e.Listen(); err != nil {
		return err
	}
	e.logger.Infof("Metrics available at http://%s/metrics", e.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := e.server.Serve(e.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.logger.Info("Shutting down metrics exporter")
	return e.server.Shutdown(shutdownCtx)
}
