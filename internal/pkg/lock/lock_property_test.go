// Property-based tests for concurrent balance safety.
package lock

import (
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that concurrent balance
// operations on the same user are consistent with sequential execution.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expectedFinalBalance := initialBalance
		for i := 0; i < numOps; i++ {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expectedFinalBalance += amounts[i]
		}

		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				ul.Lock(userID)
				defer ul.Unlock(userID)
				// read-modify-write must be protected by the lock
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expectedFinalBalance {
			t.Fatalf("Balance mismatch with locking: expected %d, got %d (initial=%d, numOps=%d)",
				expectedFinalBalance, balance, initialBalance, numOps)
		}
	})
}

// TestWithLockFunctionProperty checks that WithLock serializes operations.
func TestWithLockFunctionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		amountPerOp := rapid.Int64Range(1, 100).Draw(t, "amountPerOp")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		expectedFinalBalance := initialBalance + int64(numOps)*amountPerOp

		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = ul.WithLock(userID, func() error {
					balance += amountPerOp
					return nil
				})
			}()
		}
		wg.Wait()

		if balance != expectedFinalBalance {
			t.Fatalf("Balance mismatch with WithLock: expected %d, got %d",
				expectedFinalBalance, balance)
		}
	})
}

// TestPairLockConservationProperty checks that concurrent two-account
// transfers locked via WithPairLock neither deadlock nor lose updates:
// the total across all accounts is conserved.
func TestPairLockConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 6).Draw(t, "numUsers")
		numTransfers := rapid.IntRange(10, 50).Draw(t, "numTransfers")

		ul := NewUserLock()
		balances := make([]int64, numUsers)
		var total int64
		for i := range balances {
			balances[i] = rapid.Int64Range(1000, 10000).Draw(t, "balance")
			total += balances[i]
		}

		type transfer struct{ from, to int }
		transfers := make([]transfer, numTransfers)
		for i := range transfers {
			from := rapid.IntRange(0, numUsers-1).Draw(t, "from")
			to := rapid.IntRange(0, numUsers-1).Filter(func(v int) bool {
				return v != from
			}).Draw(t, "to")
			transfers[i] = transfer{from: from, to: to}
		}

		var wg sync.WaitGroup
		wg.Add(numTransfers)
		for _, tr := range transfers {
			go func(from, to int) {
				defer wg.Done()
				_ = ul.WithPairLock(int64(from), int64(to), func() error {
					balances[from] -= 10
					balances[to] += 10
					return nil
				})
			}(tr.from, tr.to)
		}
		wg.Wait()

		var got int64
		for _, b := range balances {
			got += b
		}
		if got != total {
			t.Fatalf("Total balance not conserved: expected %d, got %d", total, got)
		}
	})
}

// TestTryLockPreventsConcurrentSessionsProperty checks that TryLock admits
// at least one contender and leaves the lock free afterwards.
func TestTryLockPreventsConcurrentSessionsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		ul := NewUserLock()

		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		startCh := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				if ul.TryLock(userID) {
					successCount.Add(1)
					ul.Unlock(userID)
				}
			}()
		}

		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("At least one TryLock should succeed, got %d successes", successCount.Load())
		}
		if !ul.TryLock(userID) {
			t.Fatal("Lock should be available after all operations complete")
		}
		ul.Unlock(userID)
	})
}

// TestLockUnlockSymmetryProperty checks that every Lock has a matching Unlock.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		ul := NewUserLock()
		for i := 0; i < numCycles; i++ {
			ul.Lock(userID)
			ul.Unlock(userID)
		}

		if !ul.TryLock(userID) {
			t.Fatal("Lock should be available after symmetric lock/unlock cycles")
		}
		ul.Unlock(userID)
	})
}
