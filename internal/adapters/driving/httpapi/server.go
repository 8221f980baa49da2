package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/resilience"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// Config holds HTTP server settings.
type Config struct {
	// RequestsPerMinute is the per-client limit on /api routes. Zero disables it.
	RequestsPerMinute int

	// Search defaults for requests that omit k or n.
	FanOut int
	TopN   int

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration
}

// Server serves the drug QA API.
type Server struct {
	ports   *Ports
	cfg     Config
	limiter *resilience.KeyedLimiter
	handler http.Handler
}

// NewServer builds the router and middleware chain.
func NewServer(ports *Ports, cfg Config) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{ports: ports, cfg: cfg}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = resilience.NewKeyedLimiter(cfg.RequestsPerMinute, 0)
	}
	s.handler = s.setupNegroni(s.setupRoutes())
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimit)
	api.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	api.HandleFunc("/ask/stream", s.handleAskStream).Methods(http.MethodPost)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Server) setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	recovery := negroni.NewRecovery()
	recovery.Logger = logger.Printer{}
	recovery.PrintStack = false
	n.Use(recovery)

	requestLog := negroni.NewLogger()
	requestLog.ALogger = logger.Printer{}
	n.Use(requestLog)

	n.UseFunc(requestID)
	n.UseHandler(r)
	return n
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// requestID propagates or assigns an X-Request-ID.
func requestID(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		r.Header.Set(RequestIDHeader, id)
	}
	w.Header().Set(RequestIDHeader, id)
	next(w, r)
}

// rateLimit rejects clients that exceed the per-minute budget.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by remote host.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
