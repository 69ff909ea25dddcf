// Package server exposes read-only views of a ledger database over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/ledgerdb"
	"storj.io/onion-token/pkg/token"
)

var (
	mRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oniontoken",
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Number of HTTP requests by route and status code",
	}, []string{"route", "code"})
	mRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oniontoken",
		Subsystem: "server",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// LedgerSource rebuilds the current ledger. Each request gets its own
// ledger, so handlers never share mutable state.
type LedgerSource interface {
	Ledger(ctx context.Context) (*token.Ledger, error)
}

type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	log    *zap.Logger
	source LedgerSource
	config Config
	router *mux.Router
}

func New(log *zap.Logger, source LedgerSource, config Config) *Server {
	s := &Server{
		log:    log,
		source: source,
		config: config,
	}

	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/v1/token", s.handleToken).Methods(http.MethodGet)
	r.HandleFunc("/v1/accounts", s.handleAccounts).Methods(http.MethodGet)
	r.HandleFunc("/v1/balances/{address}", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/v1/allowances/{owner}/{spender}", s.handleAllowance).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, errs.New("no route for %s", r.URL.Path))
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves requests on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.log.Info("Serving ledger", zap.Stringer("address", listener.Addr()))

	select {
	case err := <-errCh:
		return errs.Wrap(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) {
		err = errs.Combine(err, serveErr)
	}
	s.log.Info("Server stopped")
	return errs.Wrap(err)
}

type tokenResponse struct {
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	Owner       common.Address `json:"owner"`
	Cap         string         `json:"cap"`
	BlockReward string         `json:"blockReward"`
	TotalSupply string         `json:"totalSupply"`
}

type balanceResponse struct {
	Address common.Address `json:"address"`
	Balance string         `json:"balance"`
}

type allowanceResponse struct {
	Owner     common.Address `json:"owner"`
	Spender   common.Address `json:"spender"`
	Allowance string         `json:"allowance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.ledger(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, tokenResponse{
		Name:        ledger.Name(),
		Symbol:      ledger.Symbol(),
		Decimals:    ledger.Decimals(),
		Owner:       ledger.Owner(),
		Cap:         ledger.Cap().String(),
		BlockReward: ledger.BlockReward().String(),
		TotalSupply: ledger.TotalSupply().String(),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.ledger(w, r)
	if !ok {
		return
	}
	accounts := ledger.Accounts()
	resp := make([]balanceResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, balanceResponse{
			Address: account,
			Balance: ledger.BalanceOf(account).String(),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address, err := oniontoken.AddressFromString(mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ledger, ok := s.ledger(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{
		Address: address,
		Balance: ledger.BalanceOf(address).String(),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, err := oniontoken.AddressFromString(vars["owner"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := oniontoken.AddressFromString(vars["spender"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ledger, ok := s.ledger(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, allowanceResponse{
		Owner:     owner,
		Spender:   spender,
		Allowance: ledger.Allowance(owner, spender).String(),
	})
}

func (s *Server) ledger(w http.ResponseWriter, r *http.Request) (*token.Ledger, bool) {
	ledger, err := s.source.Ledger(r.Context())
	switch {
	case err == nil:
		return ledger, true
	case ledgerdb.ErrNotDeployed.Has(err):
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.log.Error("Failed to load ledger", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errs.New("failed to load ledger"))
	}
	return nil, false
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		mRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		mRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.log.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("code", rec.code),
			zap.Duration("took", time.Since(start)),
		)
	})
}
