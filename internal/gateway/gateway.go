// ABOUTME: Gateway orchestrator that wires the ledger, completion client, and HTTP server
// ABOUTME: Manages listener setup, health endpoints, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/praxyhealth/praxy-gateway/internal/completion"
	"github.com/praxyhealth/praxy-gateway/internal/config"
	"github.com/praxyhealth/praxy-gateway/internal/conversation"
	"github.com/praxyhealth/praxy-gateway/internal/ledger"
)

// Gateway hosts the HTTP API in front of the conversation ledger and
// the remote completion service.
type Gateway struct {
	config       *config.Config
	ledger       *ledger.SQLiteLedger
	conversation *conversation.Service
	httpServer   *http.Server
	logger       *slog.Logger
}

// New creates a gateway from configuration, opening the ledger database
// and constructing the completion client.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	completer, err := completion.New(cfg.Completion, cfg.Models, logger)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	return newGateway(cfg, completer, logger)
}

// newGateway finishes construction with an explicit completer so tests
// can substitute a stub for the remote service.
func newGateway(cfg *config.Config, completer conversation.Completer, logger *slog.Logger) (*Gateway, error) {
	l, err := ledger.NewSQLiteLedger(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing ledger: %w", err)
	}

	g := &Gateway{
		config:       cfg,
		ledger:       l,
		conversation: conversation.New(l, completer, cfg.Completion.Timeout, logger),
		logger:       logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/api/ask", g.handleAsk)
	mux.HandleFunc("/api/history/", g.handleHistory)
	mux.HandleFunc("/api/models", g.handleModels)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g, nil
}

// Run starts the HTTP server and blocks until the context is canceled
// or the server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	// fresh context: the run context is already canceled by this point
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown stops the HTTP server and closes the ledger.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ledger close: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
