package balance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/lock"
	balancesvc "github.com/amirasaad/storefront/pkg/service/balance"
	"github.com/amirasaad/storefront/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, handles ...string) (*balancesvc.Service, *testutils.Env) {
	env := testutils.NewEnv(t)
	cfg := balancesvc.DefaultConfig()
	cfg.LockTimeout = 100 * time.Millisecond
	users, err := env.UoW.UserRepository()
	require.NoError(t, err)
	for _, h := range handles {
		require.NoError(t, users.EnsureUser(env.Ctx, h))
	}
	return balancesvc.New(env.UoW, env.Cache, env.Locks, env.Bus, cfg, env.Logger), env
}

func TestGetBalance(t *testing.T) {
	svc, env := newService(t, "Fdy")
	users, _ := env.UoW.UserRepository()
	require.NoError(t, users.UpdateBalance(env.Ctx, "Fdy", balance.New(250, 1, 0)))

	b, err := svc.GetBalance(env.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, balance.New(50, 3, 0), b, "stored components are normalized")

	var cached balance.Balance
	hit, _ := env.Cache.Get(env.Ctx, cache.BalanceKey("Fdy"), &cached)
	assert.True(t, hit)
	assert.Equal(t, b, cached)

	_, err = svc.GetBalance(env.Ctx, "Ghost")
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
}

func TestUpdateBalance_DepositAndJournal(t *testing.T) {
	svc, env := newService(t, "Fdy")

	res, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{
		Handle: "Fdy", DL: 1, Details: "Donation", Type: ledger.TypeDonation,
	})
	require.NoError(t, err)
	assert.Equal(t, balance.New(0, 1, 0), res.New)
	assert.Equal(t, int64(100), res.New.TotalWL())

	entries, err := svc.GetTransactionHistory(env.Ctx, "Fdy", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	delta, err := entries[0].DeltaWL()
	require.NoError(t, err)
	assert.Equal(t, int64(100), delta)

	published := env.Bus.PublishedOf(events.EventTypeBalanceUpdated)
	require.Len(t, published, 1)
	assert.Equal(t, balance.New(0, 1, 0), published[0].(events.BalanceUpdated).NewBalance)
}

func TestUpdateBalance_BorrowsAcrossTiers(t *testing.T) {
	svc, env := newService(t, "Fdy")
	_, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", DL: 1, Type: ledger.TypeDeposit})
	require.NoError(t, err)

	res, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{
		Handle: "Fdy", WL: -20, Details: "Purchase 2x Buah", Type: ledger.TypePurchase,
	})
	require.NoError(t, err)
	assert.Equal(t, balance.New(80, 0, 0), res.New)

	b, err := svc.GetBalance(env.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, int64(80), b.TotalWL())
}

func TestUpdateBalance_Insufficient(t *testing.T) {
	svc, env := newService(t, "Fdy")
	_, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", WL: 50, Type: ledger.TypeDeposit})
	require.NoError(t, err)

	_, err = svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", WL: -51, Type: ledger.TypeWithdrawal})
	require.ErrorIs(t, err, domain.ErrInsufficient)
	var shortfall *domain.ShortfallError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, "50 WL", shortfall.Have)
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(*) FROM balance_transactions"))
	assert.Len(t, env.Bus.PublishedOf(events.EventTypeError), 1)

	res, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{
		Handle: "Fdy", WL: -51, Type: ledger.TypeAdminRemove, BypassValidation: true,
	})
	require.NoError(t, err)
	assert.True(t, res.New.IsZero(), "bypassed debits clamp at zero")
}

func TestUpdateBalance_UnknownHandle(t *testing.T) {
	svc, env := newService(t)
	_, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Ghost", WL: 1, Type: ledger.TypeDeposit})
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
}

func TestUpdateBalance_InvalidType(t *testing.T) {
	svc, env := newService(t, "Fdy")
	_, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", WL: 1, Type: "GIFT"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestUpdateBalance_RejectsOutOfRangeDelta(t *testing.T) {
	svc, env := newService(t, "Fdy")

	for _, u := range []balancesvc.Update{
		{Handle: "Fdy", DL: 4611686018427387909, Type: ledger.TypeDeposit},
		{Handle: "Fdy", BGL: balance.MaxBGL + 1, Type: ledger.TypeAdminAdd},
		{Handle: "Fdy", WL: -balance.MaxWL - 1, Type: ledger.TypeAdminRemove, BypassValidation: true},
	} {
		_, err := svc.UpdateBalance(env.Ctx, u)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}

	b, err := svc.GetBalance(env.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, balance.Zero, b)
	entries, err := svc.History(env.Ctx, "Fdy", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateBalance_DatabaseWinsOverStaleCache(t *testing.T) {
	svc, env := newService(t, "Fdy")
	users, _ := env.UoW.UserRepository()
	require.NoError(t, users.UpdateBalance(env.Ctx, "Fdy", balance.New(0, 1, 0)))
	require.NoError(t, env.Cache.Set(env.Ctx, cache.BalanceKey("Fdy"), balance.Zero, time.Minute, false))

	res, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", WL: -50, Type: ledger.TypePurchase})
	require.NoError(t, err)
	assert.Equal(t, balance.New(0, 1, 0), res.Old)
	assert.Equal(t, int64(50), res.New.TotalWL())
}

func TestUpdateBalance_LockContention(t *testing.T) {
	svc, env := newService(t, "Fdy")
	require.NoError(t, env.Locks.Acquire(env.Ctx, lock.BalanceUpdate("Fdy"), time.Second))
	defer env.Locks.Release(lock.BalanceUpdate("Fdy"))

	_, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", WL: 5, Type: ledger.TypeDeposit})
	assert.ErrorIs(t, err, domain.ErrLockFailed)
	assert.True(t, domain.IsTransient(err))
	assert.Zero(t, env.Count(t, "SELECT COUNT(*) FROM balance_transactions"))
}

func TestUpdateBalance_ConcurrentDepositsSerialize(t *testing.T) {
	env := testutils.NewEnv(t)
	users, _ := env.UoW.UserRepository()
	require.NoError(t, users.EnsureUser(env.Ctx, "Fdy"))
	svc := balancesvc.New(env.UoW, env.Cache, env.Locks, env.Bus, balancesvc.DefaultConfig(), env.Logger)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateBalance(context.Background(), balancesvc.Update{Handle: "Fdy", WL: 10, Type: ledger.TypeDeposit})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	b, err := svc.Refresh(env.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.TotalWL())
	assert.Equal(t, int64(10), env.Count(t, "SELECT COUNT(*) FROM balance_transactions"))
}

func TestJournalDeltaMatchesUpdate(t *testing.T) {
	svc, env := newService(t, "Fdy")
	updates := []balancesvc.Update{
		{Handle: "Fdy", BGL: 1, DL: 3, Type: ledger.TypeAdminAdd},
		{Handle: "Fdy", WL: -250, Type: ledger.TypePurchase},
		{Handle: "Fdy", DL: -2, WL: 5, Type: ledger.TypeWithdrawal},
	}
	for _, u := range updates {
		res, err := svc.UpdateBalance(env.Ctx, u)
		require.NoError(t, err)
		delta, err := res.Entry.DeltaWL()
		require.NoError(t, err)
		want, ok := balance.DeltaWL(u.WL, u.DL, u.BGL)
		require.True(t, ok)
		assert.Equal(t, want, delta)
	}
}

func TestGetTransactionHistory_Cached(t *testing.T) {
	svc, env := newService(t, "Fdy")
	_, err := svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", WL: 1, Type: ledger.TypeDeposit})
	require.NoError(t, err)

	first, err := svc.GetTransactionHistory(env.Ctx, "Fdy", 5)
	require.NoError(t, err)
	require.Len(t, first, 1)

	hit, _ := env.Cache.Get(env.Ctx, cache.HistoryKey("Fdy"), &struct{}{})
	assert.True(t, hit)

	_, err = svc.UpdateBalance(env.Ctx, balancesvc.Update{Handle: "Fdy", WL: 1, Type: ledger.TypeDeposit})
	require.NoError(t, err)
	second, err := svc.GetTransactionHistory(env.Ctx, "Fdy", 5)
	require.NoError(t, err)
	assert.Len(t, second, 2, "writes invalidate the cached history")
}
