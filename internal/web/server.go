// Package web serves the funding dashboard over HTTP.
package web

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/fundingtracker/internal/domain"
	"github.com/vadiminshakov/fundingtracker/internal/state"
)

const (
	heartbeatInterval = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

//go:embed static/index.html
var indexHTML string

type viewReader interface {
	Snapshot() state.ViewState
	Version() uint64
	Subscribe() chan uint64
	Unsubscribe(ch chan uint64)
}

type tabSelector interface {
	SelectTab(tab domain.Tab) error
}

// Server exposes the dashboard page, the view API, an SSE stream and metrics.
type Server struct {
	Addr     string
	store    viewReader
	tabs     tabSelector
	registry *prometheus.Registry
	topK     int
	logger   *zap.Logger
}

// NewServer creates a new web server instance. registry may be nil, then /metrics is not mounted.
func NewServer(addr string, store viewReader, tabs tabSelector, registry *prometheus.Registry, topK int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:     addr,
		store:    store,
		tabs:     tabs,
		registry: registry,
		topK:     topK,
		logger:   logger,
	}
}

// Handler returns the routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("POST /api/tab", s.handleTab)
	mux.HandleFunc("GET /view/stream", s.handleViewStream)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("dashboard shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "dashboard server")
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with certificates obtained via ACME.
// Port 80 answers ACME challenges and redirects to HTTPS.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme server", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening with TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "dashboard tls server")
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	writeMaybeGzip(w, r, []byte(indexHTML))
}

func (s *Server) currentView() viewPayload {
	// version is read first so a concurrent update is re-sent rather than lost
	version := s.store.Version()
	return newViewPayload(s.store.Snapshot().Derive(s.topK), version)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	payload, err := json.Marshal(s.currentView())
	if err != nil {
		s.logger.Error("encode view", zap.Error(err))
		http.Error(w, "failed to encode view", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeMaybeGzip(w, r, payload)
}

func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}

	if err := s.tabs.SelectTab(domain.Tab(idx)); err != nil {
		if errors.Is(err, state.ErrInvalidTab) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Warn("select tab", zap.Int("index", idx), zap.Error(err))
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleViewStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	changes := s.store.Subscribe()
	defer s.store.Unsubscribe(changes)

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var lastVer uint64
	sendView := func() error {
		view := s.currentView()
		payload, err := json.Marshal(view)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "id: %d\n", view.Version)
		fmt.Fprintf(w, "event: view\n")
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		lastVer = view.Version
		return nil
	}

	if err := sendView(); err != nil {
		s.logger.Error("view stream initial send", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case version, ok := <-changes:
			if !ok {
				// view unmounted
				return
			}
			if version <= lastVer {
				continue
			}
			if err := sendView(); err != nil {
				s.logger.Warn("view stream send", zap.Error(err))
			}
		}
	}
}

func writeMaybeGzip(w http.ResponseWriter, r *http.Request, body []byte) {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		_, _ = w.Write(body)
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Vary", "Accept-Encoding")
	w.Header().Del("Content-Length")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	_, _ = gz.Write(body)
}
