// Package model defines the data models for the casino bot core.
package model

import "time"

// Account represents a user's coin account.
// Accounts are created lazily with a zero balance the first time a user is
// referenced, and are never deleted.
type Account struct {
	UserID         int64     `db:"user_id"`
	Balance        int64     `db:"balance"`
	LastDailyClaim int64     `db:"last_daily_claim"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// LedgerEntry represents one signed balance change. The entry log is
// append-only; every balance mutation writes an entry in the same database
// transaction that moves the coins.
type LedgerEntry struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Ref         string    `db:"ref"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Ledger entry types for categorizing balance changes.
const (
	EntryTypeDaily            = "daily"             // Daily reward claim
	EntryTypeTransferIn       = "transfer_in"       // Received a transfer
	EntryTypeTransferOut      = "transfer_out"      // Sent a transfer
	EntryTypeBlackjackBet     = "blackjack_bet"     // Wager debited at session start
	EntryTypeBlackjackWin     = "blackjack_win"     // 2x wager credited on win
	EntryTypeBlackjackPush    = "blackjack_push"    // Stake returned on push
	EntryTypeBlackjackForfeit = "blackjack_forfeit" // Idle session force-settled
	EntryTypeRouletteBet      = "roulette_bet"      // Roulette bet debited
	EntryTypeRouletteWin      = "roulette_win"      // Roulette winnings credited
	EntryTypeAdminGrant       = "admin_grant"       // Privileged user granted coins
)

// WagerEntryTypes returns the entry types produced by game wagers and their
// settlements, excluding transfers and daily rewards.
func WagerEntryTypes() []string {
	return []string{
		EntryTypeBlackjackBet,
		EntryTypeBlackjackWin,
		EntryTypeBlackjackPush,
		EntryTypeBlackjackForfeit,
		EntryTypeRouletteBet,
		EntryTypeRouletteWin,
	}
}
