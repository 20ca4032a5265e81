package ledger

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Factory is a function type that creates a new, empty ledger.
type Factory func() ILedger

// ILedger is the interface for interacting with an inventory ledger.
// Read operations never fail for absent keys (except Get), they return empty
// results or zero amounts instead. All returned items are copies.
type ILedger interface {
	// Add increments the quantity of key by amount, creating the item with the given
	// category and template if it does not exist. The category and template of an
	// existing item are never changed. Adding 0 to an absent key is a no-op.
	Add(key string, category uint32, template uint64, amount uint64) (err error)
	// Decrement subtracts amount from the quantity of an existing key. The item is removed
	// (from the ledger and both indices) when its quantity reaches 0.
	// Fails with RetCNotFound if the key is absent and RetCIllegalOperations if the
	// quantity is smaller than amount.
	Decrement(key string, amount uint64) (err error)
	// Get returns the item stored for key. Fails with RetCNotFound if the key is absent.
	Get(key string) (item Item, err error)
	// GetByCategory returns all items of a category.
	GetByCategory(category uint32) (items []Item, err error)
	// GetByTemplate returns all items instantiated from a template.
	GetByTemplate(template uint64) (items []Item, err error)
	// Amount returns the quantity of key (0 if absent).
	Amount(key string) (amount uint64, err error)
	// AmountByCategory returns the summed quantity of all items of a category.
	AmountByCategory(category uint32) (amount uint64, err error)
	// AmountByTemplate returns the summed quantity of all items of a template.
	AmountByTemplate(template uint64) (amount uint64, err error)
	// ToList returns a snapshot of all items in no particular order.
	ToList() (items []Item, err error)
	// VerifyOps reports whether the batch would currently be accepted by DoOps.
	// Malformed batches report false. The result is advisory only: no lock is held after
	// the call returns, so any concurrent mutation may invalidate it.
	VerifyOps(ops []Op) (ok bool, err error)
	// DoOps validates and applies a batch as a unit and returns one effect per applied
	// operation, in input order. A malformed batch fails with RetCUnsupportedOperation, an
	// infeasible one with RetCIllegalOperations; in both cases nothing is changed.
	DoOps(ops []Op) (effects []Effect, err error)
	// GetInfo returns metadata about the ledger.
	// It is not guaranteed that the information is up-to-date!
	GetInfo() (info Info, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by all ledger implementations. It wraps a
// return code (of type RetCode) and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("LedgerError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a ledger error with the same code.
// This allows errors.Is(err, ledger.ErrNotFound) regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new ledger Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf returns the RetCode carried by err.
// nil maps to RetCSuccess and foreign errors to RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// Sentinel errors for use with errors.Is
var (
	ErrNotFound             = NewError(RetCNotFound, "item not found")
	ErrUnsupportedOperation = NewError(RetCUnsupportedOperation, "unsupported operation")
	ErrIllegalOperations    = NewError(RetCIllegalOperations, "illegal operations")
	ErrLockFailure          = NewError(RetCLockFailure, "lock failure")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Malformed operation input (shape, type or kind code).
	RetCIllegalOperations                   // 3: Well-formed batch that is not feasible.
	RetCNotFound                            // 4: Read of an absent key.
	RetCLockFailure                         // 5: Internal synchronization is broken (poisoned lock).
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCIllegalOperations:
		return "IllegalOperations"
	case RetCNotFound:
		return "NotFound"
	case RetCLockFailure:
		return "LockFailure"
	default:
		return "Unknown"
	}
}
