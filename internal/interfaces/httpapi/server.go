package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
)

// tradeTimeout 下单/平仓的总超时，与客户端连接无关
const tradeTimeout = 30 * time.Second

// Deps HTTP 层依赖，Coordinator / Venues 为空时策略接口返回 503
type Deps struct {
	Query       *service.QueryService
	Coordinator *service.StrategyCoordinator
	Venues      port.VenueSet
}

// Server 只读查询 + 策略执行的 JSON API
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/opportunities", s.handleListOpportunities)
	s.mux.HandleFunc("GET /api/opportunities/top", s.handleTopOpportunities)
	s.mux.HandleFunc("GET /api/opportunities/{key}", s.handleGetOpportunity)
	s.mux.HandleFunc("POST /api/opportunities/recompute", s.handleRecompute)
	s.mux.HandleFunc("GET /api/rates/history", s.handleRateHistory)
	s.mux.HandleFunc("GET /api/strategies", s.handleListStrategies)
	s.mux.HandleFunc("POST /api/strategies", s.handleExecute)
	s.mux.HandleFunc("GET /api/strategies/{id}", s.handleGetStrategy)
	s.mux.HandleFunc("DELETE /api/strategies/{id}", s.handleCloseStrategy)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("took", time.Since(start)).
		Msg("http request")
}

// ListenAndServe 阻塞直到 ctx 取消，然后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("✓ HTTP API listening")
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

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := port.OpportunityQuery{Symbol: q.Get("symbol")}

	var err error
	if query.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		writeError(w, model.NewValidationError("limit", "%q is not an integer", q.Get("limit")))
		return
	}
	if raw := q.Get("min_abs_diff"); raw != "" {
		if query.MinAbsDiff, err = strconv.ParseFloat(raw, 64); err != nil {
			writeError(w, model.NewValidationError("min_abs_diff", "%q is not a number", raw))
			return
		}
	}

	opps, err := s.deps.Query.ListCurrent(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opportunitiesResponse{Count: len(opps), Opportunities: opps})
}

func (s *Server) handleTopOpportunities(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r.URL.Query().Get("n"), service.DefaultTopN)
	if err != nil {
		writeError(w, model.NewValidationError("n", "%q is not an integer", r.URL.Query().Get("n")))
		return
	}
	opps, err := s.deps.Query.Top(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opportunitiesResponse{Count: len(opps), Opportunities: opps})
}

func (s *Server) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	opp, err := s.deps.Query.FindByKey(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opp)
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	opps, err := s.deps.Query.ForceRecompute(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opportunitiesResponse{Count: len(opps), Opportunities: opps})
}

// handleRateHistory ?symbol=BTC&exchange=binance&from=<unix ms|RFC3339>&to=...
func (s *Server) handleRateHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol, exchange := q.Get("symbol"), q.Get("exchange")
	if strings.TrimSpace(symbol) == "" || strings.TrimSpace(exchange) == "" {
		writeError(w, model.NewValidationError("symbol", "symbol and exchange are required"))
		return
	}
	from, err := timeParam(q.Get("from"))
	if err != nil {
		writeError(w, model.NewValidationError("from", "%v", err))
		return
	}
	to, err := timeParam(q.Get("to"))
	if err != nil {
		writeError(w, model.NewValidationError("to", "%v", err))
		return
	}

	rates, err := s.deps.Query.RateHistory(r.Context(), symbol, exchange, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(rates), "rates": rates})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	if !s.tradingEnabled(w) {
		return
	}
	list := s.deps.Coordinator.List()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "strategies": list})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	if !s.tradingEnabled(w) {
		return
	}
	st, ok := s.deps.Coordinator.Get(r.PathValue("id"))
	if !ok {
		writeError(w, service.ErrStrategyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type executeRequest struct {
	OpportunityKey string `json:"opportunity_key"`
	Size           string `json:"size"`
}

// handleExecute 按机会键与仓位大小开仓，部分成交返回 502 和已下单的腿
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !s.tradingEnabled(w) {
		return
	}

	var req executeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, model.NewValidationError("body", "%v", err))
		return
	}
	size, err := service.ParsePositionSize(req.Size)
	if err != nil {
		writeError(w, err)
		return
	}
	opp, err := s.deps.Query.FindByKey(r.Context(), req.OpportunityKey)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := tradeContext(r)
	defer cancel()
	st, err := s.deps.Coordinator.Execute(ctx, service.ExecuteRequest{
		Opportunity: *opp,
		Size:        size,
		Venues:      s.deps.Venues,
	})
	if err != nil {
		writeStrategyError(w, st, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleCloseStrategy(w http.ResponseWriter, r *http.Request) {
	if !s.tradingEnabled(w) {
		return
	}
	ctx, cancel := tradeContext(r)
	defer cancel()
	st, err := s.deps.Coordinator.Close(ctx, r.PathValue("id"))
	if err != nil {
		writeStrategyError(w, st, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// tradeContext 客户端断开后仍要把两条腿都提交完
func tradeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), tradeTimeout)
}

func (s *Server) tradingEnabled(w http.ResponseWriter) bool {
	if s.deps.Coordinator == nil || s.deps.Venues == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "trading not configured"})
		return false
	}
	return true
}
