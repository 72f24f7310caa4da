package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/driveflow/driveflow"
	"github.com/driveflow/driveflow/internal/tokencache"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authorization HTTP service",
	Long:  "Serves an HTTP API that accepts delegated-access requests, drives the\ndevice-code grant against the provider, and caches granted tokens keyed by\nthe resource owner.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var (
		cache       tokencache.Cache
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		cache = tokencache.NewRedisCache(redisClient)
		logger.Info().Msg("using Redis token cache")
	} else {
		mem := tokencache.NewMemoryCache()
		defer mem.Stop()
		cache = mem
		logger.Info().Msg("using in-memory token cache")
	}

	srv := newServer(client, cache)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("server listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server: %w", err)

	case <-shutdown:
		logger.Info().Msg("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutting down server")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("closing server")
			}
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("closing Redis connection")
			}
		}
	}
	return nil
}

type server struct {
	client *driveflow.Client
	cache  tokencache.Cache
	router *chi.Mux
}

func newServer(client *driveflow.Client, cache tokencache.Cache) *server {
	srv := &server{
		client: client,
		cache:  cache,
		router: chi.NewRouter(),
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Recoverer)

	srv.router.Get("/healthz", srv.handleHealth())
	srv.router.Post("/authorizations", srv.handleAuthorize())
	srv.router.Get("/authorizations/{target}", srv.handleLookup())
	srv.router.Delete("/authorizations/{target}", srv.handleRevoke())

	return srv
}

func (s *server) handleHealth() http.HandlerFunc {
	type healthResponse struct {
		Status string `json:"status"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if hc, ok := s.cache.(interface{ CheckHealth(context.Context) error }); ok {
			if err := hc.CheckHealth(r.Context()); err != nil {
				resp.Status = "degraded"
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}
		writeJSON(w, resp)
	}
}

// handleAuthorize runs the whole grant synchronously: the request blocks
// until the owner approves, refuses, or the window closes.
func (s *server) handleAuthorize() http.HandlerFunc {
	type authorizeRequest struct {
		TargetID string `json:"target_id"`
		Scope    string `json:"scope,omitempty"`
		Timeout  string `json:"timeout,omitempty"`
	}
	type authorizeResponse struct {
		TargetID  string    `json:"target_id"`
		TokenType string    `json:"token_type"`
		Scope     string    `json:"scope,omitempty"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req authorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TargetID == "" {
			writeError(w, http.StatusBadRequest, "missing target_id")
			return
		}

		var timeout time.Duration
		if req.Timeout != "" {
			d, err := time.ParseDuration(req.Timeout)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid timeout")
				return
			}
			timeout = d
		}

		token, err := s.client.RequestAccess(r.Context(), driveflow.AccessRequest{
			TargetID: req.TargetID,
			Scope:    req.Scope,
			Timeout:  timeout,
		})
		if err != nil {
			writeAuthError(w, err)
			return
		}

		if err := s.cache.Put(r.Context(), req.TargetID, token); err != nil {
			logger.Error().Err(err).Str("target", req.TargetID).Msg("caching token")
		}

		writeJSON(w, authorizeResponse{
			TargetID:  req.TargetID,
			TokenType: token.TokenType,
			Scope:     token.Scope,
			ExpiresAt: token.ExpiresAt,
		})
	}
}

func (s *server) handleLookup() http.HandlerFunc {
	type lookupResponse struct {
		TargetID  string    `json:"target_id"`
		TokenType string    `json:"token_type"`
		Scope     string    `json:"scope,omitempty"`
		ExpiresAt time.Time `json:"expires_at"`
		Valid     bool      `json:"valid"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "target")
		token, err := s.cache.Get(r.Context(), target)
		if err != nil {
			if errors.Is(err, tokencache.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no authorization for target")
				return
			}
			writeError(w, http.StatusInternalServerError, "cache lookup failed")
			return
		}

		writeJSON(w, lookupResponse{
			TargetID:  target,
			TokenType: token.TokenType,
			Scope:     token.Scope,
			ExpiresAt: token.ExpiresAt,
			Valid:     token.Valid(),
		})
	}
}

func (s *server) handleRevoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "target")
		if err := s.cache.Delete(r.Context(), target); err != nil {
			writeError(w, http.StatusInternalServerError, "cache delete failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeAuthError maps grant outcomes onto HTTP statuses.
func writeAuthError(w http.ResponseWriter, err error) {
	var blocked *driveflow.HookBlockedError
	switch {
	case errors.As(err, &blocked):
		writeError(w, http.StatusForbidden, blocked.Error())
	case errors.Is(err, driveflow.ErrAuthorizationDenied):
		writeError(w, http.StatusForbidden, "resource owner refused the request")
	case errors.Is(err, driveflow.ErrAuthorizationTimedOut):
		writeError(w, http.StatusGatewayTimeout, "authorization window closed without a decision")
	case errors.Is(err, driveflow.ErrAuthorizationExpired):
		writeError(w, http.StatusGone, "device code expired before approval")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		logger.Error().Err(err).Msg("encoding error response")
	}
}
