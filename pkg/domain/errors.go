package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
)

// Storefront error kinds. The error text is the user-presentable message;
// Code returns the machine identifier.
var (
	ErrNotRegistered    = errors.New("you have not registered a GrowID yet")
	ErrInvalidHandle    = errors.New("GrowID must be at least 3 characters")
	ErrHandleExists     = errors.New("this GrowID is already registered to another user")
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidProduct   = errors.New("invalid product code")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrOutOfStock       = errors.New("not enough stock available")
	ErrStockLimit       = errors.New("stock limit reached")
	ErrInsufficient     = errors.New("insufficient balance")
	ErrBalanceNotFound  = errors.New("balance not found")
	ErrLockFailed       = errors.New("system is busy, please try again in a moment")
	ErrMaintenanceMode  = errors.New("the store is under maintenance, please try again later")
	ErrDatabase         = errors.New("database error")
	ErrTransaction      = errors.New("transaction failed")
	ErrPermissionDenied = errors.New("you do not have permission to do this")
	ErrRateLimited      = errors.New("you are doing that too fast, slow down")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrNotRegistered, "NotRegistered"},
	{ErrInvalidHandle, "InvalidHandle"},
	{ErrHandleExists, "HandleExists"},
	{ErrProductNotFound, "ProductNotFound"},
	{ErrInvalidProduct, "InvalidProductCode"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrOutOfStock, "OutOfStock"},
	{ErrStockLimit, "StockLimit"},
	{ErrInsufficient, "InsufficientBalance"},
	{ErrBalanceNotFound, "BalanceNotFound"},
	{ErrLockFailed, "LockAcquisitionFailed"},
	{ErrMaintenanceMode, "MaintenanceMode"},
	{ErrPermissionDenied, "PermissionDenied"},
	{ErrRateLimited, "RateLimited"},
	{ErrDatabase, "DatabaseError"},
	{ErrTransaction, "TransactionFailed"},
}

// ShortfallError reports an affordability failure with the formatted
// balance the user has and the amount the operation needs.
type ShortfallError struct {
	Have string
	Need string
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient balance: you have %s, you need %s", e.Have, e.Need)
}

// Is makes errors.Is(err, ErrInsufficient) hold for shortfalls.
func (e *ShortfallError) Is(target error) bool {
	return target == ErrInsufficient
}

// Code maps err to its machine identifier. Errors outside the known kinds
// are reported as TransactionFailed.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "TransactionFailed"
}

// Message returns the user-presentable sentence for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var shortfall *ShortfallError
	if errors.As(err, &shortfall) {
		return shortfall.Error()
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return ErrTransaction.Error()
}

// IsTransient reports whether the caller may retry the same request later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLockFailed) || errors.Is(err, ErrRateLimited)
}
