// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-casino-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

const accountColumns = "user_id, balance, last_daily_claim, created_at, updated_at"

const insertEntrySQL = `
	INSERT INTO ledger_entries (user_id, amount, type, ref, description, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
`

// AccountRepository handles account persistence. Every mutating method
// commits before returning, so a successful return implies the change is
// durable. Methods that move coins write the matching ledger entries in the
// same database transaction.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Ensure creates the account with a zero balance if it does not exist yet
// and returns it. Safe to call concurrently.
func (r *AccountRepository) Ensure(ctx context.Context, userID int64) (*model.Account, error) {
	const query = `
		INSERT INTO accounts (user_id, balance, last_daily_claim, created_at, updated_at)
		VALUES ($1, 0, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	return r.GetByID(ctx, userID)
}

// GetByID retrieves an account by user ID.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) GetByID(ctx context.Context, userID int64) (*model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	var acc model.Account
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.LastDailyClaim,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// TotalBalance returns the sum of all account balances, used by the startup
// conservation audit against the ledger entry log.
func (r *AccountRepository) TotalBalance(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(balance), 0) FROM accounts`

	var total int64
	if err := r.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}

// Credit adds amount coins to an account and records a ledger entry, in one
// database transaction. The account must exist. Returns the new balance.
func (r *AccountRepository) Credit(ctx context.Context, userID, amount int64, entryType, ref string, description *string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := creditTx(ctx, tx, userID, amount, entryType, ref, description)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit credit: %w", err)
	}
	return newBalance, nil
}

// Debit removes amount coins from an account and records a ledger entry, in
// one database transaction. The balance guard is part of the UPDATE, so the
// balance can never go negative. Returns the new balance.
func (r *AccountRepository) Debit(ctx context.Context, userID, amount int64, entryType, ref string, description *string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := debitTx(ctx, tx, userID, amount, entryType, ref, description)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit debit: %w", err)
	}
	return newBalance, nil
}

// Transfer moves amount coins from one account to another, both-or-neither.
// The debit, the credit and both ledger entries share one database
// transaction; a failed credit rolls the debit back.
func (r *AccountRepository) Transfer(ctx context.Context, fromID, toID, amount int64, ref string) error {
	fromDesc := fmt.Sprintf("transfer to user %d", toID)
	toDesc := fmt.Sprintf("transfer from user %d", fromID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := debitTx(ctx, tx, fromID, amount, model.EntryTypeTransferOut, ref, &fromDesc); err != nil {
		return err
	}
	if _, err := creditTx(ctx, tx, toID, amount, model.EntryTypeTransferIn, ref, &toDesc); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// ApplyDailyClaim credits the daily reward and stamps last_daily_claim
// atomically. Both happen or neither. Returns the new balance.
func (r *AccountRepository) ApplyDailyClaim(ctx context.Context, userID, reward, claimTime int64, ref string) (int64, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $2, last_daily_claim = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var newBalance int64
	err = tx.QueryRow(ctx, query, userID, reward, claimTime).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to apply daily claim: %w", err)
	}

	desc := "daily reward"
	if _, err := tx.Exec(ctx, insertEntrySQL, userID, reward, model.EntryTypeDaily, ref, &desc); err != nil {
		return 0, fmt.Errorf("failed to record daily claim entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit daily claim: %w", err)
	}
	return newBalance, nil
}

// creditTx applies a credit and its ledger entry inside an open transaction.
func creditTx(ctx context.Context, tx pgx.Tx, userID, amount int64, entryType, ref string, description *string) (int64, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`

	var newBalance int64
	err := tx.QueryRow(ctx, query, userID, amount).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}

	if _, err := tx.Exec(ctx, insertEntrySQL, userID, amount, entryType, ref, description); err != nil {
		return 0, fmt.Errorf("failed to record credit entry: %w", err)
	}
	return newBalance, nil
}

// debitTx applies a guarded debit and its ledger entry inside an open
// transaction. Returns ErrInsufficientFunds when the guard rejects the
// update; a missing account debits like an empty one.
func debitTx(ctx context.Context, tx pgx.Tx, userID, amount int64, entryType, ref string, description *string) (int64, error) {
	const query = `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`

	var newBalance int64
	err := tx.QueryRow(ctx, query, userID, amount).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to debit account: %w", err)
	}

	if _, err := tx.Exec(ctx, insertEntrySQL, userID, -amount, entryType, ref, description); err != nil {
		return 0, fmt.Errorf("failed to record debit entry: %w", err)
	}
	return newBalance, nil
}
