package service_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// TestConcurrentWalletDebit simulates 50 goroutines simultaneously debiting a
// fixed stake from a shared wallet balance — protected by a mutex.  This test
// verifies our concurrency guard pattern compiles and passes -race.
//
// In the real BetService, the users-row FOR UPDATE lock taken by the wallet
// repository provides this guarantee.  Here we replicate the same guard with
// sync primitives so the race detector can confirm the pattern is sound.
func TestConcurrentWalletDebit(t *testing.T) {
	const workers = 50
	const stakeEach = 10

	balance := decimal.NewFromInt(int64(workers * stakeEach)) // exact total
	var mu sync.Mutex
	var rejected int64 // debits refused for insufficient funds (zero expected)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			stake := decimal.NewFromInt(stakeEach)

			mu.Lock()
			defer mu.Unlock()

			if balance.LessThan(stake) {
				atomic.AddInt64(&rejected, 1)
				return
			}
			balance = balance.Sub(stake)
		}()
	}
	wg.Wait()

	if rejected > 0 {
		t.Errorf("expected 0 rejected debits, got %d", rejected)
	}
	// Balance should be exactly 0 after exactly 50 × 10 debits.
	if !balance.IsZero() {
		t.Errorf("final balance should be 0, got %s", balance)
	}
}

// TestConcurrentSettlementGate verifies the settle-once guarantee under
// concurrent access: of N goroutines racing to flip the gate from not_settled
// to settling, exactly one wins.  The real gate is the conditional UPDATE in
// MarkSettling; this mirrors it with a compare-and-set.
func TestConcurrentSettlementGate(t *testing.T) {
	const workers = 20

	var gate int32 // 0 = not_settled, 1 = settling
	var winners int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if atomic.CompareAndSwapInt32(&gate, 0, 1) {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("settlement gate admitted %d winners, want exactly 1", winners)
	}
}

// TestConcurrentClaimGuard verifies exactly-once claiming: one goroutine gets
// the payout, all others see the slip as already claimed.  Mirrors the
// conditional UPDATE ... WHERE claimed = FALSE in SetClaimed.
func TestConcurrentClaimGuard(t *testing.T) {
	const workers = 20

	var mu sync.Mutex
	claimed := false
	payouts := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if claimed {
				return
			}
			claimed = true
			payouts++
		}()
	}
	wg.Wait()

	if payouts != 1 {
		t.Errorf("claim guard paid out %d times, want exactly 1", payouts)
	}
}
