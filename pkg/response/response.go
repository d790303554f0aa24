// Package response defines the envelope returned by every service-facing
// operation of the storefront.
package response

import (
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
)

// Response wraps an operation result. On failure Error carries the machine
// code and Message the user-presentable sentence.
type Response[T any] struct {
	Success   bool      `json:"success"`
	Data      T         `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OK wraps a successful result.
func OK[T any](data T, message string) Response[T] {
	return Response[T]{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Fail wraps err using the domain error taxonomy.
func Fail[T any](err error) Response[T] {
	return Response[T]{
		Error:     domain.Code(err),
		Message:   domain.Message(err),
		Timestamp: time.Now().UTC(),
	}
}

// From builds OK or Fail depending on err.
func From[T any](data T, err error, message string) Response[T] {
	if err != nil {
		return Fail[T](err)
	}
	return OK(data, message)
}
