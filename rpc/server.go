package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendpool/crypto"
	"lendpool/lending"
	"lendpool/observability"
	"lendpool/oracle"
)

const requestLimit = 1 << 20 // 1 MiB

// Server exposes the lending engine over HTTP JSON. Admin routes are gated by
// a shared-secret header; everything else is open, matching the pool's
// permissionless call surface.
type Server struct {
	engine      *lending.Engine
	prices      oracle.PriceOracle
	log         *slog.Logger
	adminSecret string
	metrics     *observability.LendingMetrics
}

// NewServer wires the HTTP surface over the engine. An empty adminSecret
// disables the admin routes entirely.
func NewServer(engine *lending.Engine, prices oracle.PriceOracle, log *slog.Logger, adminSecret string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:      engine,
		prices:      prices,
		log:         log,
		adminSecret: strings.TrimSpace(adminSecret),
		metrics:     observability.Lending(),
	}
}

// Handler builds the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/assets", s.listAssets)
		v1.Get("/price/{asset}", s.getPrice)
		v1.Get("/positions/{user}", s.getPosition)

		v1.Post("/deposit", s.mutation("deposit", s.deposit))
		v1.Post("/withdraw", s.mutation("withdraw", s.withdraw))
		v1.Post("/borrow", s.mutation("borrow", s.borrow))
		v1.Post("/repay", s.mutation("repay", s.repay))
		v1.Post("/liquidate", s.mutation("liquidate", s.liquidate))
		v1.Post("/pool/fund", s.mutation("fund", s.fundPool))

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(s.requireAdmin)
			admin.Post("/assets", s.mutation("registerAsset", s.registerAsset))
			admin.Post("/pool/withdraw", s.mutation("withdrawPoolFunds", s.withdrawPoolFunds))
		})
	})

	return otelhttp.NewHandler(r, "lendpool.rpc")
}

// mutation wraps a handler with operation metrics and logging.
func (s *Server) mutation(name string, handler func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp, err := handler(r)
		s.metrics.Observe(name, err, time.Since(start))
		if err != nil {
			s.log.Warn("operation rejected", "operation", name, "error", err)
			writeError(w, err)
			return
		}
		s.log.Info("operation committed", "operation", name)
		if resp == nil {
			resp = map[string]string{"status": "ok"}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminSecret == "" {
			writeJSON(w, http.StatusForbidden, errorBody("admin interface disabled"))
			return
		}
		provided := strings.TrimSpace(r.Header.Get("X-Lendpool-Admin-Secret"))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminSecret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody("invalid admin secret"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type amountRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type registerAssetRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Weight uint64 `json:"weight"`
}

type poolWithdrawRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type liquidateRequest struct {
	User string `json:"user"`
}

func (s *Server) deposit(r *http.Request) (any, error) {
	user, asset, amount, err := decodeAmountRequest(r)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.Deposit(user, asset, amount)
}

func (s *Server) withdraw(r *http.Request) (any, error) {
	user, asset, amount, err := decodeAmountRequest(r)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.Withdraw(user, asset, amount)
}

func (s *Server) borrow(r *http.Request) (any, error) {
	user, asset, amount, err := decodeAmountRequest(r)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.Borrow(user, asset, amount)
}

func (s *Server) repay(r *http.Request) (any, error) {
	user, asset, amount, err := decodeAmountRequest(r)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.Repay(user, asset, amount)
}

func (s *Server) fundPool(r *http.Request) (any, error) {
	user, asset, amount, err := decodeAmountRequest(r)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.FundPool(user, asset, amount)
}

func (s *Server) liquidate(r *http.Request) (any, error) {
	var req liquidateRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	user, err := crypto.DecodeAddress(req.User)
	if err != nil {
		return nil, badRequest("user", err)
	}
	result, err := s.engine.Liquidate(user)
	if err != nil {
		return nil, err
	}
	assets := make([]string, 0, len(result.Assets))
	amounts := make([]string, 0, len(result.Amounts))
	for i := range result.Assets {
		assets = append(assets, result.Assets[i].String())
		amounts = append(amounts, result.Amounts[i].String())
	}
	return map[string]any{
		"user":         result.User.String(),
		"totalDebtUSD": result.TotalDebtUSD.String(),
		"assets":       assets,
		"amounts":      amounts,
		"restitution":  result.Restitution.String(),
	}, nil
}

func (s *Server) registerAsset(r *http.Request) (any, error) {
	var req registerAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		return nil, badRequest("caller", err)
	}
	asset, err := crypto.DecodeAddress(req.Asset)
	if err != nil {
		return nil, badRequest("asset", err)
	}
	return nil, s.engine.RegisterAsset(caller, asset, req.Weight)
}

func (s *Server) withdrawPoolFunds(r *http.Request) (any, error) {
	var req poolWithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		return nil, badRequest("caller", err)
	}
	to, err := crypto.DecodeAddress(req.To)
	if err != nil {
		return nil, badRequest("to", err)
	}
	asset, err := crypto.DecodeAddress(req.Asset)
	if err != nil {
		return nil, badRequest("asset", err)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.WithdrawPoolFunds(caller, to, asset, amount)
}

func (s *Server) listAssets(w http.ResponseWriter, _ *http.Request) {
	assets, err := s.engine.Registry().Assets()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(assets))
	for _, id := range assets {
		record, err := s.engine.Registry().Asset(id)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, map[string]any{
			"asset":  id.String(),
			"weight": record.Weight,
			"active": record.Active,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": out})
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	asset, err := crypto.DecodeAddress(chi.URLParam(r, "asset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	price, err := s.prices.PriceOf(asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset": asset.String(),
		"price": price.String(),
	})
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	user, err := crypto.DecodeAddress(chi.URLParam(r, "user"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	capacity, err := s.engine.BorrowCapacity(user)
	if err != nil {
		writeError(w, err)
		return
	}
	debtUSD, err := s.engine.TotalDebtUSD(user)
	if err != nil {
		writeError(w, err)
		return
	}
	indebtedness, err := s.engine.Indebtedness(user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user":           user.String(),
		"borrowCapacity": capacity.String(),
		"totalDebtUSD":   debtUSD.String(),
		"indebtedness":   indebtedness.String(),
	})
}

// --- request/response helpers ---

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(field string, err error) error {
	return &requestError{msg: field + ": " + err.Error()}
}

func decodeJSON(r *http.Request, out any) error {
	body := http.MaxBytesReader(nil, r.Body, requestLimit)
	defer body.Close()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return &requestError{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

func decodeAmountRequest(r *http.Request) (crypto.Address, crypto.Address, *big.Int, error) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		return crypto.Address{}, crypto.Address{}, nil, err
	}
	user, err := crypto.DecodeAddress(req.User)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, nil, badRequest("user", err)
	}
	asset, err := crypto.DecodeAddress(req.Asset)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, nil, badRequest("asset", err)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, nil, err
	}
	return user, asset, amount, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, &requestError{msg: "amount must be a base-10 integer"}
	}
	return amount, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps engine and oracle failures onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, lending.ErrZeroAmount),
		errors.Is(err, lending.ErrInvalidWeight),
		errors.Is(err, lending.ErrAssetExists),
		errors.Is(err, lending.ErrUnsupportedAsset):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, lending.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrInsufficientReserve),
		errors.Is(err, lending.ErrExceedsBorrowCapacity),
		errors.Is(err, lending.ErrExceedsLTV),
		errors.Is(err, lending.ErrNoDebt),
		errors.Is(err, lending.ErrHealthy),
		errors.Is(err, lending.ErrShortfall):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, lending.ErrReentrantCall),
		errors.Is(err, lending.ErrModulePaused):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	case errors.Is(err, oracle.ErrNoPriceRoute),
		errors.Is(err, oracle.ErrZeroQuoteReserve),
		errors.Is(err, oracle.ErrZeroBaseReserve):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}
