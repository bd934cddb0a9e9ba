// Package wallet provides clients for the platform's account and payout
// services. The engine only sees the two interfaces; balances and the
// transaction ledger live behind the platform API.
package wallet

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds indicates the user's balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")

	// ErrUnknownUser indicates the account service has no record of the user.
	ErrUnknownUser = errors.New("wallet: unknown user")

	// ErrUnavailable indicates the wallet service is unreachable or unavailable.
	// Callers must treat the operation's outcome as unknown.
	ErrUnavailable = errors.New("wallet: unavailable")
)

// Accounts exposes the balance operations the engine needs during cartela
// confirmation.
type Accounts interface {
	// Balance returns the user's available balance.
	Balance(ctx context.Context, userID string) (int, error)

	// Deduct removes amount from the user's balance.
	// Returns ErrInsufficientFunds if the balance cannot cover it.
	Deduct(ctx context.Context, userID string, amount int) error
}

// Payouts credits winnings. Implementations must apply a given reference at
// most once, so the engine can safely hand the same settlement to a retrying
// transport.
type Payouts interface {
	// Payout credits amount to the user and returns the ledger transaction id.
	Payout(ctx context.Context, userID string, amount int, reference string) (string, error)
}
