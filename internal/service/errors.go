package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")

	// ErrUnsupportedOperation: the account's backend lacks the capability.
	// Rejected synchronously, never retried.
	ErrUnsupportedOperation = errors.New("operation not supported by backend")

	// ErrInvalidTransfer: cross-account moves are never supported.
	ErrInvalidTransfer = errors.New("cannot move item across accounts")

	// ErrItemBusy: a critical operation is in progress for the item's
	// account subtree.
	ErrItemBusy = errors.New("item busy")

	// ErrOperationBusy: the account's critical-operation lock is held.
	// The caller decides whether to retry.
	ErrOperationBusy = errors.New("operation already in progress")
)

// OperationBusyError carries which account and operation hold the lock.
type OperationBusyError struct {
	AccountID int64
	Operation string
}

func (e *OperationBusyError) Error() string {
	return fmt.Sprintf("account %d busy: %s in progress", e.AccountID, e.Operation)
}

func (e *OperationBusyError) Is(target error) bool {
	return target == ErrOperationBusy
}

// StorageError marks a persistence failure: fatal for the current
// operation, already-committed state of other feeds stays intact.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
