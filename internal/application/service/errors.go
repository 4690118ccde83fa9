package service

import "errors"

var (
	ErrStrategyNotFound    = errors.New("strategy not found")
	ErrStrategyBusy        = errors.New("strategy is being closed by another request")
	ErrDuplicateSubmission = errors.New("same strategy submitted too recently")
)
