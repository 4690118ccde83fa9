package model

import (
	"fmt"
	"strings"
)

// ValidationError 在任何网络调用之前拒绝的输入
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransientAdapterError 交易所适配器调用失败（网络、超时、限频）
type TransientAdapterError struct {
	Exchange string
	Op       string
	Err      error
}

func (e *TransientAdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Exchange, e.Op, e.Err)
}

func (e *TransientAdapterError) Unwrap() error { return e.Err }

// DataAbsentError 某一侧没有新鲜费率，仅用于内部跳过
type DataAbsentError struct {
	Symbol   string
	Exchange string
}

func (e *DataAbsentError) Error() string {
	return fmt.Sprintf("no fresh rate for %s on %s", e.Symbol, e.Exchange)
}

// ExecutionError 第一条腿（做多）失败，未下任何单
type ExecutionError struct {
	Failed Leg
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s leg on %s (%s) failed, no order placed: %v",
		e.Failed.Role, e.Failed.Exchange, e.Failed.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PartialExecutionError 一条腿成功、另一条失败；绝不自动回滚
type PartialExecutionError struct {
	StrategyID string
	Placed     Leg
	Failed     Leg
	Err        error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution %s: %s leg on %s placed (order %s), %s leg on %s failed: %v",
		e.StrategyID,
		e.Placed.Role, e.Placed.Exchange, e.Placed.OrderID,
		e.Failed.Role, e.Failed.Exchange, e.Err)
}

func (e *PartialExecutionError) Unwrap() error { return e.Err }

// PartialCloseError 平仓时仍有腿未平
type PartialCloseError struct {
	StrategyID string
	Open       []Leg
	Errs       []error
}

func (e *PartialCloseError) Error() string {
	parts := make([]string, 0, len(e.Open))
	for i, l := range e.Open {
		msg := fmt.Sprintf("%s leg on %s (%s) still open", l.Role, l.Exchange, l.Symbol)
		if i < len(e.Errs) && e.Errs[i] != nil {
			msg += ": " + e.Errs[i].Error()
		}
		parts = append(parts, msg)
	}
	return fmt.Sprintf("close %s incomplete: %s", e.StrategyID, strings.Join(parts, "; "))
}

func (e *PartialCloseError) Unwrap() []error { return e.Errs }
