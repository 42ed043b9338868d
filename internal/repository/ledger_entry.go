package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-casino-bot/internal/model"
)

// LedgerEntryRepository reads the append-only ledger entry log. Entries are
// written by AccountRepository inside the transactions that move coins; this
// repository only queries them.
type LedgerEntryRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository instance.
func NewLedgerEntryRepository(pool *pgxpool.Pool) *LedgerEntryRepository {
	return &LedgerEntryRepository{pool: pool}
}

const entryColumns = "id, user_id, amount, type, ref, description, created_at"

// GetByUserID retrieves a user's entries, newest first.
func (r *LedgerEntryRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByRef retrieves all entries sharing a settlement reference. Both legs
// of a transfer carry the same ref, as do a wager and its settlement.
func (r *LedgerEntryRepository) GetByRef(ctx context.Context, ref string) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE ref = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries by ref: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SumAll returns the sum of every entry amount in the log. Because every
// balance mutation writes its entry in the same transaction, this must equal
// the sum of all account balances; transfers net out to zero.
func (r *LedgerEntryRepository) SumAll(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries`

	var sum int64
	if err := r.pool.QueryRow(ctx, query).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

func scanEntries(rows pgx.Rows) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Amount,
			&e.Type,
			&e.Ref,
			&e.Description,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}
