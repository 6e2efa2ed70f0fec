package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/battle"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/cache"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/repository"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/trader"
)

var walletRegexp = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

type ServerConfig struct {
	Port            int
	APIKey          string
	CORSAllowOrigin string
	ScanConcurrency int // parallel chain scans for the leaderboard
}

type Server struct {
	pool       *pgxpool.Pool
	battles    *repository.BattleRepo
	traders    *repository.TraderRepo
	snapshots  *battle.Assembler
	portfolios *trader.Aggregator
	profiles   *cache.ProfileCache
	metrics    *observability.Metrics
	httpServer *http.Server
	apiKey     string
	scanLimit  int
	log        zerolog.Logger
}

func NewServer(pool *pgxpool.Pool, snapshots *battle.Assembler, portfolios *trader.Aggregator, profiles *cache.ProfileCache, metrics *observability.Metrics, cfg ServerConfig) *Server {
	if cfg.ScanConcurrency <= 0 {
		cfg.ScanConcurrency = 4
	}

	s := &Server{
		pool:       pool,
		battles:    repository.NewBattleRepo(pool),
		traders:    repository.NewTraderRepo(pool),
		snapshots:  snapshots,
		portfolios: portfolios,
		profiles:   profiles,
		metrics:    metrics,
		apiKey:     cfg.APIKey,
		scanLimit:  cfg.ScanConcurrency,
		log:        observability.NewLogger("api"),
	}

	mux := http.NewServeMux()

	// Battle routes
	mux.HandleFunc("GET /v1/battles", s.handleBattleList)
	mux.HandleFunc("GET /v1/battles/{id}", s.handleBattle)
	mux.HandleFunc("GET /v1/battles/{id}/settlement", s.handleBattleSettlement)
	mux.HandleFunc("GET /v1/leaderboard", s.handleLeaderboard)

	// Trader routes
	mux.HandleFunc("GET /v1/traders/{wallet}", s.handleTraderProfile)

	// Health and metrics (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := s.requestLog(s.authMiddleware(corsMiddleware(mux, cfg.CORSAllowOrigin)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Bool("auth", s.apiKey != "").
		Msg("REST API listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

// requestLog tags every request with an id, logs it, and feeds the
// request metrics. Runs outermost so it sees the final status code.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(started)

		// The mux fills in Pattern during routing; requests that never
		// reach it (preflight, 404) have none.
		route := r.Pattern
		if route == "" {
			route = "other"
		}
		s.metrics.RequestObserved(route, rec.status, elapsed.Seconds())

		s.log.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validWallet(wallet string) bool {
	return walletRegexp.MatchString(wallet)
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
