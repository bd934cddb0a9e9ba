package wallet

import (
	"context"
	"fmt"
	"sync"
)

// MemoryWallet keeps balances in memory. It backs local development and tests
// where no platform API is running.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[string]int
	payouts  map[string]string // reference -> transaction id
	nextTxn  int
}

// NewMemoryWallet creates an empty in-memory wallet.
func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{
		balances: make(map[string]int),
		payouts:  make(map[string]string),
	}
}

// Credit adds amount to a user's balance, creating the account if needed.
func (w *MemoryWallet) Credit(userID string, amount int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] += amount
}

// Balance implements Accounts.
func (w *MemoryWallet) Balance(_ context.Context, userID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance, ok := w.balances[userID]
	if !ok {
		return 0, ErrUnknownUser
	}
	return balance, nil
}

// Deduct implements Accounts.
func (w *MemoryWallet) Deduct(_ context.Context, userID string, amount int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance, ok := w.balances[userID]
	if !ok {
		return ErrUnknownUser
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	w.balances[userID] = balance - amount
	return nil
}

// Payout implements Payouts. References are applied at most once; a repeated
// reference returns the transaction id of the first application.
func (w *MemoryWallet) Payout(_ context.Context, userID string, amount int, reference string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if txn, ok := w.payouts[reference]; ok {
		return txn, nil
	}

	w.nextTxn++
	txn := fmt.Sprintf("txn-%d", w.nextTxn)
	w.payouts[reference] = txn
	w.balances[userID] += amount
	return txn, nil
}
