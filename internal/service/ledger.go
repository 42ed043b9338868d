package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/pkg/lock"
	"discord-casino-bot/internal/repository"
)

// RetryPolicy bounds the settlement persistence retries.
type RetryPolicy struct {
	MaxRetries      uint
	InitialInterval time.Duration
}

// LedgerService enforces balance invariants and atomic mutations over the
// account store. Operations for one user serialize on a per-account lock;
// two-account operations take both locks in ascending ID order.
type LedgerService struct {
	store       AccountStore
	accountLock *lock.UserLock
	dailyReward int64
	cooldown    time.Duration
	retry       RetryPolicy
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(store AccountStore, dailyReward int64, cooldownHours int, retry RetryPolicy) *LedgerService {
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 100 * time.Millisecond
	}
	return &LedgerService{
		store:       store,
		accountLock: lock.NewUserLock(),
		dailyReward: dailyReward,
		cooldown:    time.Duration(cooldownHours) * time.Hour,
		retry:       retry,
	}
}

// DailyReward returns the configured daily claim amount.
func (s *LedgerService) DailyReward() int64 {
	return s.dailyReward
}

// GetBalance retrieves a user's current balance.
// An unknown user has a zero balance; this never fails on absence.
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	acc, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return acc.Balance, nil
}

// Credit adds amount coins to a user's account, creating it if needed.
// Returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, userID, amount int64, entryType string, description *string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	ref := newRef()
	var newBalance int64
	err := s.accountLock.WithLock(userID, func() error {
		if _, err := s.store.Ensure(ctx, userID); err != nil {
			return err
		}
		var err error
		newBalance, err = s.store.Credit(ctx, userID, amount, entryType, ref, description)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to credit: %w", err)
	}
	return newBalance, nil
}

// Debit removes amount coins from a user's account. Returns the new balance,
// ErrInvalidAmount for non-positive amounts, or ErrInsufficientFunds when the
// balance cannot cover the amount; the balance is never driven negative.
func (s *LedgerService) Debit(ctx context.Context, userID, amount int64, entryType string, description *string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	ref := newRef()
	var newBalance int64
	err := s.accountLock.WithLock(userID, func() error {
		var err error
		newBalance, err = s.store.Debit(ctx, userID, amount, entryType, ref, description)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to debit: %w", err)
	}
	return newBalance, nil
}

// Wager debits a bet from a user's account and returns the settlement ref
// that ties the bet to its eventual payout.
func (s *LedgerService) Wager(ctx context.Context, userID, amount int64, entryType string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	ref := newRef()
	err := s.accountLock.WithLock(userID, func() error {
		_, err := s.store.Debit(ctx, userID, amount, entryType, ref, nil)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return "", ErrInsufficientFunds
		}
		return "", fmt.Errorf("failed to place wager: %w", err)
	}
	return ref, nil
}

// Transfer moves amount coins from one user to another, both-or-neither.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSelfTransfer
	}

	ref := newRef()
	err := s.accountLock.WithPairLock(fromID, toID, func() error {
		if _, err := s.store.Ensure(ctx, toID); err != nil {
			return err
		}
		return s.store.Transfer(ctx, fromID, toID, amount, ref)
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("failed to transfer: %w", err)
	}
	return nil
}

// ClaimDaily claims the fixed daily reward. Within the cooldown window it
// returns a CooldownError carrying the remaining wait and performs no
// mutation. On success the credit and the claim timestamp are persisted
// atomically. Returns the new balance.
func (s *LedgerService) ClaimDaily(ctx context.Context, userID int64, now time.Time) (int64, error) {
	ref := newRef()
	var newBalance int64
	err := s.accountLock.WithLock(userID, func() error {
		acc, err := s.store.Ensure(ctx, userID)
		if err != nil {
			return err
		}

		if acc.LastDailyClaim > 0 {
			elapsed := now.Sub(time.Unix(acc.LastDailyClaim, 0))
			if elapsed < s.cooldown {
				return &CooldownError{Remaining: s.cooldown - elapsed}
			}
		}

		newBalance, err = s.store.ApplyDailyClaim(ctx, userID, s.dailyReward, now.Unix(), ref)
		return err
	})
	if err != nil {
		var cooldownErr *CooldownError
		if errors.As(err, &cooldownErr) {
			return 0, cooldownErr
		}
		return 0, fmt.Errorf("failed to claim daily reward: %w", err)
	}
	return newBalance, nil
}

// SettleCredit credits a settlement payout, retrying the persistence step
// with bounded exponential backoff. The matching debit already happened, so
// a dropped credit would break ledger conservation; when retries exhaust the
// caller receives a PersistenceError whose ref identifies the pending credit
// for manual reconciliation.
func (s *LedgerService) SettleCredit(ctx context.Context, userID, amount int64, entryType, ref string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if ref == "" {
		ref = newRef()
	}

	var newBalance int64
	err := s.accountLock.WithLock(userID, func() error {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = s.retry.InitialInterval

		attempt := 0
		return backoff.Retry(func() error {
			attempt++
			var err error
			newBalance, err = s.store.Credit(ctx, userID, amount, entryType, ref, nil)
			if err != nil {
				log.Warn().
					Err(err).
					Int64("user_id", userID).
					Str("ref", ref).
					Int("attempt", attempt).
					Msg("Settlement credit failed, retrying")
			}
			return err
		}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.retry.MaxRetries)), ctx))
	})
	if err != nil {
		log.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("amount", amount).
			Str("type", entryType).
			Str("ref", ref).
			Msg("Settlement credit exhausted retries")
		return 0, &PersistenceError{Ref: ref, Err: err}
	}
	return newBalance, nil
}

// Grant credits coins to a user on behalf of the privileged identity.
// Authorization is the caller's responsibility; the grant itself is a plain
// ledger credit with its own entry type.
func (s *LedgerService) Grant(ctx context.Context, toID, amount int64) (int64, error) {
	desc := "operator grant"
	return s.Credit(ctx, toID, amount, model.EntryTypeAdminGrant, &desc)
}

// newRef returns a fresh settlement reference.
func newRef() string {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid generation only fails when the entropy source does; fall back
		// to a timestamp ref rather than refusing the operation.
		return fmt.Sprintf("ts-%d", time.Now().UnixNano())
	}
	return id.String()
}
