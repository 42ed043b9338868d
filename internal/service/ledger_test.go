package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/repository"
)

// fakeStore is an in-memory AccountStore. It mirrors the repository
// semantics: guarded debits, atomic transfers, a ledger entry per mutation.
// creditFailures fails the next n Credit calls to exercise retry paths.
type fakeStore struct {
	mu             sync.Mutex
	accounts       map[int64]*model.Account
	entries        []*model.LedgerEntry
	creditFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[int64]*model.Account)}
}

func (f *fakeStore) Ensure(ctx context.Context, userID int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.accounts[userID]; !ok {
		f.accounts[userID] = &model.Account{UserID: userID}
	}
	acc := *f.accounts[userID]
	return &acc, nil
}

func (f *fakeStore) GetByID(ctx context.Context, userID int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[userID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	out := *acc
	return &out, nil
}

func (f *fakeStore) Credit(ctx context.Context, userID, amount int64, entryType, ref string, description *string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.creditFailures > 0 {
		f.creditFailures--
		return 0, errors.New("store unavailable")
	}
	acc, ok := f.accounts[userID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	acc.Balance += amount
	f.entries = append(f.entries, &model.LedgerEntry{UserID: userID, Amount: amount, Type: entryType, Ref: ref})
	return acc.Balance, nil
}

func (f *fakeStore) Debit(ctx context.Context, userID, amount int64, entryType, ref string, description *string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[userID]
	if !ok || acc.Balance < amount {
		return 0, repository.ErrInsufficientFunds
	}
	acc.Balance -= amount
	f.entries = append(f.entries, &model.LedgerEntry{UserID: userID, Amount: -amount, Type: entryType, Ref: ref})
	return acc.Balance, nil
}

func (f *fakeStore) Transfer(ctx context.Context, fromID, toID, amount int64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	from, ok := f.accounts[fromID]
	if !ok || from.Balance < amount {
		return repository.ErrInsufficientFunds
	}
	to, ok := f.accounts[toID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	from.Balance -= amount
	to.Balance += amount
	f.entries = append(f.entries,
		&model.LedgerEntry{UserID: fromID, Amount: -amount, Type: model.EntryTypeTransferOut, Ref: ref},
		&model.LedgerEntry{UserID: toID, Amount: amount, Type: model.EntryTypeTransferIn, Ref: ref},
	)
	return nil
}

func (f *fakeStore) ApplyDailyClaim(ctx context.Context, userID, reward, claimTime int64, ref string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[userID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	acc.Balance += reward
	acc.LastDailyClaim = claimTime
	f.entries = append(f.entries, &model.LedgerEntry{UserID: userID, Amount: reward, Type: model.EntryTypeDaily, Ref: ref})
	return acc.Balance, nil
}

func (f *fakeStore) balance(userID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[userID]; ok {
		return acc.Balance
	}
	return 0
}

func (f *fakeStore) entriesFor(userID int64) []*model.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(store *fakeStore) *LedgerService {
	return NewLedgerService(store, 100, 24, RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond})
}

func TestGetBalanceUnknownUserIsZero(t *testing.T) {
	svc := newTestService(newFakeStore())

	balance, err := svc.GetBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCreditCreatesAccount(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	balance, err := svc.Credit(context.Background(), 1, 50, model.EntryTypeAdminGrant, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	entries := store.entriesFor(1)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(50), entries[0].Amount)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Credit(context.Background(), 1, 0, model.EntryTypeAdminGrant, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Credit(context.Background(), 1, -10, model.EntryTypeAdminGrant, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDebitInsufficientFunds(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	// unknown account debits like an empty one
	_, err := svc.Debit(ctx, 1, 10, model.EntryTypeRouletteBet, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = svc.Credit(ctx, 1, 30, model.EntryTypeAdminGrant, nil)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, 1, 31, model.EntryTypeRouletteBet, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(30), store.balance(1), "a rejected debit changes nothing")
}

func TestWagerDebitsAndReturnsRef(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 100, model.EntryTypeAdminGrant, nil)
	require.NoError(t, err)

	ref, err := svc.Wager(ctx, 1, 30, model.EntryTypeBlackjackBet)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Equal(t, int64(70), store.balance(1))

	entries := store.entriesFor(1)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-30), entries[1].Amount)
	assert.Equal(t, model.EntryTypeBlackjackBet, entries[1].Type)
	assert.Equal(t, ref, entries[1].Ref)
}

func TestWagerInsufficientFunds(t *testing.T) {
	svc := newTestService(newFakeStore())

	ref, err := svc.Wager(context.Background(), 1, 30, model.EntryTypeBlackjackBet)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, ref)
}

func TestTransfer(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 100, model.EntryTypeAdminGrant, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Transfer(ctx, 1, 2, 40))
	assert.Equal(t, int64(60), store.balance(1))
	assert.Equal(t, int64(40), store.balance(2), "the recipient account is created on demand")

	// both legs share one ref
	out := store.entriesFor(1)
	in := store.entriesFor(2)
	require.Len(t, out, 2)
	require.Len(t, in, 1)
	assert.Equal(t, out[1].Ref, in[0].Ref)
}

func TestTransferValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Transfer(ctx, 1, 2, 0), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Transfer(ctx, 1, 2, -5), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Transfer(ctx, 1, 1, 10), ErrSelfTransfer)
	assert.ErrorIs(t, svc.Transfer(ctx, 1, 2, 10), ErrInsufficientFunds)
}

func TestClaimDailyFirstClaim(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	now := time.Unix(1_700_000_000, 0)

	balance, err := svc.ClaimDaily(context.Background(), 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	entries := store.entriesFor(1)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntryTypeDaily, entries[0].Type)
}

func TestClaimDailyWithinCooldown(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := svc.ClaimDaily(ctx, 1, now)
	require.NoError(t, err)

	_, err = svc.ClaimDaily(ctx, 1, now.Add(time.Hour))
	var cooldownErr *CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Equal(t, 23*time.Hour, cooldownErr.Remaining)
	assert.Equal(t, int64(100), store.balance(1), "a rejected claim changes nothing")
}

func TestClaimDailyAfterCooldown(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := svc.ClaimDaily(ctx, 1, now)
	require.NoError(t, err)

	balance, err := svc.ClaimDaily(ctx, 1, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
}

func TestSettleCreditRetriesUntilSuccess(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 100, model.EntryTypeAdminGrant, nil)
	require.NoError(t, err)

	store.creditFailures = 2
	balance, err := svc.SettleCredit(ctx, 1, 80, model.EntryTypeBlackjackWin, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Equal(t, int64(180), balance)

	entries := store.entriesFor(1)
	require.Len(t, entries, 2, "the credit lands exactly once")
}

func TestSettleCreditExhaustedRetries(t *testing.T) {
	store := newFakeStore()
	svc := NewLedgerService(store, 100, 24, RetryPolicy{MaxRetries: 1, InitialInterval: time.Millisecond})
	ctx := context.Background()

	_, err := svc.Credit(ctx, 1, 100, model.EntryTypeAdminGrant, nil)
	require.NoError(t, err)

	store.creditFailures = 10
	_, err = svc.SettleCredit(ctx, 1, 80, model.EntryTypeBlackjackWin, "ref-keep")

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "ref-keep", persistErr.Ref, "the ref survives for reconciliation")
	assert.Equal(t, int64(100), store.balance(1))
}

func TestGrant(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	balance, err := svc.Grant(context.Background(), 5, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	entries := store.entriesFor(5)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntryTypeAdminGrant, entries[0].Type)
}
