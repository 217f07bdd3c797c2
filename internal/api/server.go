// Package api serves health, metrics, status and ledger read endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/observability"
	"curator-signal-lab/internal/storage"
	"curator-signal-lab/internal/tracker"
)

// TradeReader is the read side of the ledger.
type TradeReader interface {
	Summary() domain.AggregateStats
	AllTrades() []*domain.PaperTrade
	Trade(id string) (*domain.PaperTrade, error)
}

// StatusSource reports scheduler progress.
type StatusSource interface {
	Status() tracker.Status
}

// Server is the HTTP surface of the tracker service.
type Server struct {
	ledger    TradeReader
	scheduler StatusSource // optional
	gatherer  prometheus.Gatherer
	startedAt time.Time
	wallets   int
	log       *logger.Logger
	now       func() time.Time
}

// Options configures a Server.
type Options struct {
	Ledger    TradeReader
	Scheduler StatusSource
	Gatherer  prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	StartedAt time.Time
	Wallets   int // number of tracked curator wallets
	Logger    *logger.Logger
}

// NewServer creates a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, errors.New("api: ledger is required")
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now().UTC()
	}
	return &Server{
		ledger:    opts.Ledger,
		scheduler: opts.Scheduler,
		gatherer:  opts.Gatherer,
		startedAt: opts.StartedAt,
		wallets:   opts.Wallets,
		log:       opts.Logger.Named("api"),
		now:       time.Now,
	}, nil
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler(s.gatherer))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("GET /trades/{id}", s.handleTrade)

	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status         string     `json:"status"`
	Uptime         string     `json:"uptime"`
	StartedAt      time.Time  `json:"started_at"`
	Wallets        int        `json:"wallets"`
	PendingSignals int        `json:"pending_signals"`
	Sweeps         int64      `json:"sweeps"`
	LastSweepAt    *time.Time `json:"last_sweep_at,omitempty"`
	OpenTrades     int        `json:"open_trades"`
	TotalTrades    int        `json:"total_trades"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum := s.ledger.Summary()
	resp := StatusResponse{
		Status:      "running",
		Uptime:      s.now().Sub(s.startedAt).Truncate(time.Second).String(),
		StartedAt:   s.startedAt,
		Wallets:     s.wallets,
		OpenTrades:  sum.OpenTrades,
		TotalTrades: sum.TotalTrades,
	}
	if s.scheduler != nil {
		st := s.scheduler.Status()
		resp.PendingSignals = st.PendingSignals
		resp.Sweeps = st.Sweeps
		if !st.LastSweepAt.IsZero() {
			resp.LastSweepAt = &st.LastSweepAt
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Summary())
}

// handleTrades lists trades, optionally filtered by ?status=, ?wallet= and
// ?token=. status=open selects every non-terminal trade.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && status != "open" && !domain.TradeStatus(status).IsValid() {
		s.writeError(w, http.StatusBadRequest, "unknown status "+status)
		return
	}
	wallet, token := q.Get("wallet"), q.Get("token")

	trades := make([]*domain.PaperTrade, 0)
	for _, t := range s.ledger.AllTrades() {
		switch {
		case status == "open" && t.Status.IsTerminal():
			continue
		case status != "" && status != "open" && string(t.Status) != status:
			continue
		case wallet != "" && t.CuratorWallet != wallet:
			continue
		case token != "" && t.TokenID != token:
			continue
		}
		trades = append(trades, t)
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.Trade(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "trade not found")
		return
	}
	if err != nil {
		s.log.Error("trade lookup failed", logger.Err(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response", logger.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
