package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
)

type opportunitiesResponse struct {
	Count         int                          `json:"count"`
	Opportunities []model.ArbitrageOpportunity `json:"opportunities"`
}

type errorResponse struct {
	Error    string          `json:"error"`
	Field    string          `json:"field,omitempty"`
	Strategy *model.Strategy `json:"strategy,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}

// statusOf 错误 -> HTTP 状态码
func statusOf(err error) int {
	var (
		ve  *model.ValidationError
		ee  *model.ExecutionError
		pe  *model.PartialExecutionError
		pce *model.PartialCloseError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, port.ErrNotFound), errors.Is(err, service.ErrStrategyNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStrategyBusy), errors.Is(err, service.ErrDuplicateSubmission):
		return http.StatusConflict
	case errors.As(err, &pe), errors.As(err, &pce), errors.As(err, &ee):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("http handler failed")
	}
	writeJSON(w, status, resp)
}

// writeStrategyError 部分执行 / 部分平仓时带上策略当前状态
func writeStrategyError(w http.ResponseWriter, st *model.Strategy, err error) {
	resp := errorResponse{Error: err.Error(), Strategy: st}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	writeJSON(w, statusOf(err), resp)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// timeParam unix 毫秒或 RFC3339，空为零值
func timeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339, raw)
}
