package service

import "sync"

// SyncContext is the per-process table of per-account critical-operation
// locks. Update batches and structural edits both acquire the account's
// slot; a second acquisition fails immediately with OperationBusyError
// instead of queuing. Created at startup, threaded through the scheduler,
// the engine and the tree; there is no hidden global.
type SyncContext struct {
	mu   sync.Mutex
	held map[int64]string // account id -> operation name
}

func NewSyncContext() *SyncContext {
	return &SyncContext{held: make(map[int64]string)}
}

// Acquire claims the account's critical-operation slot for op.
func (c *SyncContext) Acquire(accountID int64, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.held[accountID]; ok {
		return &OperationBusyError{AccountID: accountID, Operation: current}
	}
	c.held[accountID] = op
	return nil
}

// Release frees the account's slot. Releasing an unheld slot is a no-op.
func (c *SyncContext) Release(accountID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, accountID)
}

// Busy reports whether a critical operation is running for the account.
func (c *SyncContext) Busy(accountID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.held[accountID]
	return ok
}
