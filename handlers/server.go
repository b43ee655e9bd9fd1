// Package handlers exposes the HTTP surface: the inbound message webhook,
// the owner's order management API, health, and metrics.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"halobot/pkg/config"
	"halobot/pkg/engine"
	"halobot/pkg/logx"
	"halobot/pkg/orders"
	"halobot/pkg/persistence"
	"halobot/pkg/version"
)

// Server hosts the webhook and admin endpoints.
type Server struct {
	engine *engine.Engine
	store  *persistence.Store
	orders *orders.Service
	cfg    config.Config
	logger *logx.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(eng *engine.Engine, store *persistence.Store, orderSvc *orders.Service, cfg config.Config) *Server {
	return &Server{
		engine: eng,
		store:  store,
		orders: orderSvc,
		cfg:    cfg,
		logger: logx.NewLogger("http"),
	}
}

// RegisterRoutes attaches all endpoints to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/messages", s.handleInbound)
	mux.HandleFunc("/api/orders", s.requireAdmin(s.handleOrders))
	mux.HandleFunc("/api/orders/", s.requireAdmin(s.handleOrderRouter))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// StartServer runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	//nolint:contextcheck // Parent context is cancelled; shutdown needs a fresh one
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}

// requireAdmin guards owner endpoints with a bearer token. With no token
// configured the admin API is disabled outright rather than left open.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			s.logger.Error("admin API request rejected: no admin token configured")
			http.Error(w, "Admin API disabled", http.StatusForbidden)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			s.logger.Warn("Failed admin authentication from %s", r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, format string, args ...any) {
	s.writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
