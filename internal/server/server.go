package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/job-dashboard/internal/ai"
	"github.com/jonathan/job-dashboard/internal/config"
	"github.com/jonathan/job-dashboard/internal/db"
	"github.com/jonathan/job-dashboard/internal/identity"
	"github.com/jonathan/job-dashboard/internal/server/middleware"
	"github.com/jonathan/job-dashboard/internal/server/ratelimit"
	"github.com/jonathan/job-dashboard/internal/session"
)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	db          *db.DB
	ai          ai.Client
	identity    *identity.Session
	store       *session.Store
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	authHandler *AuthHandler

	// setupStatus is non-nil when required configuration is missing; the
	// server then serves setup instructions instead of the API.
	setupStatus *config.Status
}

// New creates a new server instance. When required configuration is missing
// the server still starts, serving setup instructions on every route.
func New(cfg *config.Config) (*Server, error) {
	if status := cfg.Validate(); !status.Configured() {
		log.Printf("[server] missing configuration: %v", status.Missing)
		s := &Server{setupStatus: &status}
		s.httpServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      s.withLogging(s.withCORS(s.setupRouter())),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		return s, nil
	}

	ctx := context.Background()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	aiClient, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	s := &Server{
		db: database,
		ai: aiClient,
	}

	s.identity = identity.NewSession(identity.NewCredentialProvider(database, passwordConfig))
	s.store = session.New(database)
	s.store.Bind(s.identity)

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())
	s.jwtService = NewJWTService(jwtConfig)
	s.userService = NewUserService(database, passwordConfig)
	s.authHandler = NewAuthHandler(s.userService, s.jwtService, s.identity)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.router()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // AI calls and SSE streams run long
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// router builds the API routes. Everything except auth and health requires a
// valid token for the signed-in user.
func (s *Server) router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	mux.HandleFunc("GET /health", s.handleHealth)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /auth/logout", s.authHandler.Logout)
	protected.HandleFunc("PUT /auth/password", s.handleUpdatePassword)
	protected.HandleFunc("GET /session", s.handleGetSession)
	protected.HandleFunc("GET /session/stream", s.handleSessionStream)
	protected.HandleFunc("POST /analyze", s.handleAnalyze)
	protected.HandleFunc("POST /analyze/upload", s.handleAnalyzeUpload)
	protected.HandleFunc("POST /cover-letter", s.handleCoverLetter)
	protected.HandleFunc("POST /jobs/search", s.handleJobSearch)
	protected.HandleFunc("GET /history", s.handleHistory)
	protected.HandleFunc("DELETE /history/{id}", s.handleDeleteHistory)
	protected.HandleFunc("GET /history/export", s.handleExportHistory)

	mux.Handle("/", middleware.Auth(s.jwtService.AsTokenValidator())(protected))

	return mux
}

// setupRouter serves setup instructions until the environment is configured.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/", s.handleSetupInstructions)
	return mux
}

// handleSetupInstructions tells the operator which variables are missing.
func (s *Server) handleSetupInstructions(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusServiceUnavailable, map[string]any{
		"error":   "configuration_incomplete",
		"message": "The server is not configured yet. Set the missing environment variables and restart.",
		"missing": s.setupStatus.Missing,
	})
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.ai != nil {
		if err := s.ai.Close(); err != nil {
			log.Printf("[server] failed to close AI client: %v", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpdatePassword resolves the authenticated user before delegating to
// the auth handler.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}
	s.authHandler.UpdatePasswordWithUserID(w, r, user.ID)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request. For a
// single-user dashboard the RemoteAddr IP is sufficient.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
