// Package result defines the uniform response shape of every engine
// operation: a status flag, a typed payload on success, and an error string
// with contextual fields on failure.
package result

import (
	"github.com/retroryan/shopledger/internal/model"
)

// Status is "success" or "failed".
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is returned by every operation of the engine facade.
type Result struct {
	Status  Status         `json:"status"`
	Data    any            `json:"data,omitempty"`    // success payload
	Error   string         `json:"error,omitempty"`   // human-readable message
	Code    model.Code     `json:"code,omitempty"`    // stable failure category
	Details map[string]any `json:"details,omitempty"` // e.g. available_stock

	// Retryable is set for integrity failures (store unavailable, lock
	// contention). Rejections and bad input are never retryable as-is.
	Retryable bool `json:"retryable,omitempty"`
}

// OK wraps a payload.
func OK(data any) Result {
	return Result{Status: StatusSuccess, Data: data}
}

// Fail converts any error into a failed result. *model.Error values keep their
// code and details; everything else is reported as a retryable store error.
func Fail(err error) Result {
	if e, ok := model.AsError(err); ok {
		return Result{
			Status:  StatusFailed,
			Error:   e.Message,
			Code:    e.Code,
			Details: e.Details,
		}
	}
	return Result{
		Status:    StatusFailed,
		Error:     err.Error(),
		Code:      model.CodeStoreError,
		Retryable: true,
	}
}

// From builds a result from a (payload, error) pair.
func From[T any](data T, err error) Result {
	if err != nil {
		return Fail(err)
	}
	return OK(data)
}

// Succeeded reports whether the operation succeeded.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Detail returns a contextual field and whether it was present.
func (r Result) Detail(key string) (any, bool) {
	v, ok := r.Details[key]
	return v, ok
}
