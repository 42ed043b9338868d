package service

import (
	"context"

	"discord-casino-bot/internal/model"
)

// AccountStore is the persistence surface the ledger service needs. It is
// implemented by repository.AccountRepository; tests substitute an in-memory
// fake. Every method is durable on successful return.
type AccountStore interface {
	// Ensure creates the account at balance 0 if missing and returns it.
	Ensure(ctx context.Context, userID int64) (*model.Account, error)

	// GetByID returns the account or repository.ErrAccountNotFound.
	GetByID(ctx context.Context, userID int64) (*model.Account, error)

	// Credit adds amount and records a ledger entry atomically.
	Credit(ctx context.Context, userID, amount int64, entryType, ref string, description *string) (int64, error)

	// Debit removes amount, guarded so the balance never goes negative, and
	// records a ledger entry atomically. Returns
	// repository.ErrInsufficientFunds when the guard rejects.
	Debit(ctx context.Context, userID, amount int64, entryType, ref string, description *string) (int64, error)

	// Transfer moves amount between two accounts both-or-neither.
	Transfer(ctx context.Context, fromID, toID, amount int64, ref string) error

	// ApplyDailyClaim credits the reward and stamps the claim time atomically.
	ApplyDailyClaim(ctx context.Context, userID, reward, claimTime int64, ref string) (int64, error)
}
