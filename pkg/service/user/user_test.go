package user_test

import (
	"sync"
	"testing"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/service/admin"
	"github.com/amirasaad/storefront/pkg/service/user"
	"github.com/amirasaad/storefront/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = "1"

func newAdmin(env *testutils.Env) *admin.Service {
	return admin.New(env.UoW, env.Cache, admin.Config{AdminIDs: []string{adminID}}, env.Logger)
}

func newService(t *testing.T) (*user.Service, *testutils.Env) {
	env := testutils.NewEnv(t)
	return user.New(env.UoW, env.Cache, env.Locks, newAdmin(env), user.DefaultConfig(), env.Logger), env
}

func TestRegister(t *testing.T) {
	svc, env := newService(t)

	handle, err := svc.Register(env.Ctx, "42", "  Fdy ")
	require.NoError(t, err)
	assert.Equal(t, "Fdy", handle)

	got, err := svc.GetHandle(env.Ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Fdy", got)

	pid, err := svc.GetPlatformID(env.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, "42", pid)

	var cached string
	hit, _ := env.Cache.Get(env.Ctx, cache.HandleKey("42"), &cached)
	assert.True(t, hit)
	assert.Equal(t, "Fdy", cached)

	_, err = svc.Register(env.Ctx, "42", "Fdy")
	assert.NoError(t, err, "re-registering the same pair is allowed")
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(*) FROM users"))
}

func TestRegister_Rejections(t *testing.T) {
	svc, env := newService(t)

	_, err := svc.Register(env.Ctx, "42", "ab")
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)

	_, err = svc.Register(env.Ctx, "42", "Fdy")
	require.NoError(t, err)
	_, err = svc.Register(env.Ctx, "43", "Fdy")
	assert.ErrorIs(t, err, domain.ErrHandleExists)
	assert.Equal(t, "HandleExists", domain.Code(err))
}

func TestRegister_KeepsExistingBalance(t *testing.T) {
	svc, env := newService(t)
	users, err := env.UoW.UserRepository()
	require.NoError(t, err)
	require.NoError(t, users.UpsertUser(env.Ctx, "Fdy", balance.New(0, 3, 0)))

	_, err = svc.Register(env.Ctx, "42", "Fdy")
	require.NoError(t, err)

	u, err := users.Get(env.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, balance.New(0, 3, 0), u.Balance)
}

func TestGetHandle_NotRegistered(t *testing.T) {
	svc, env := newService(t)
	_, err := svc.GetHandle(env.Ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotRegistered)
	_, err = svc.GetPlatformID(env.Ctx, "Nobody")
	assert.ErrorIs(t, err, domain.ErrNotRegistered)
}

func TestUpdateHandle_MovesBalanceAndJournal(t *testing.T) {
	svc, env := newService(t)
	_, err := svc.Register(env.Ctx, "42", "Old")
	require.NoError(t, err)

	users, _ := env.UoW.UserRepository()
	journal, _ := env.UoW.LedgerRepository()
	require.NoError(t, users.UpdateBalance(env.Ctx, "Old", balance.New(50, 2, 0)))
	for range 3 {
		require.NoError(t, journal.Append(env.Ctx, &ledger.Entry{
			Handle: "Old", Type: ledger.TypeDeposit, OldBalance: "0 WL", NewBalance: "1 WL",
		}))
	}
	require.NoError(t, env.Cache.Set(env.Ctx, cache.BalanceKey("Old"), balance.New(50, 2, 0), 0, false))

	handle, err := svc.UpdateHandle(env.Ctx, "42", "New")
	require.NoError(t, err)
	assert.Equal(t, "New", handle)

	u, err := users.Get(env.Ctx, "New")
	require.NoError(t, err)
	assert.Equal(t, balance.New(50, 2, 0), u.Balance)

	_, err = users.Get(env.Ctx, "Old")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := journal.ListByHandle(env.Ctx, "New", 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	got, err := svc.GetHandle(env.Ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "New", got)

	var stale balance.Balance
	hit, _ := env.Cache.Get(env.Ctx, cache.BalanceKey("Old"), &stale)
	assert.False(t, hit, "old balance projection is invalidated")
}

func TestUpdateHandle_Rejections(t *testing.T) {
	svc, env := newService(t)

	_, err := svc.UpdateHandle(env.Ctx, "42", "Fresh")
	assert.ErrorIs(t, err, domain.ErrNotRegistered)

	_, err = svc.Register(env.Ctx, "42", "Mine")
	require.NoError(t, err)
	_, err = svc.Register(env.Ctx, "43", "Theirs")
	require.NoError(t, err)

	_, err = svc.UpdateHandle(env.Ctx, "42", "Theirs")
	assert.ErrorIs(t, err, domain.ErrHandleExists)

	_, err = svc.UpdateHandle(env.Ctx, "42", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)

	_, err = svc.UpdateHandle(env.Ctx, "42", "Mine")
	assert.NoError(t, err, "renaming to the same handle is a no-op")
}

func TestMutatorsBlockedDuringMaintenance(t *testing.T) {
	env := testutils.NewEnv(t)
	adm := newAdmin(env)
	svc := user.New(env.UoW, env.Cache, env.Locks, adm, user.DefaultConfig(), env.Logger)
	_, err := svc.Register(env.Ctx, "42", "Fdy")
	require.NoError(t, err)
	require.NoError(t, adm.SetMaintenanceMode(env.Ctx, adminID, true))

	_, err = svc.Register(env.Ctx, "43", "Budi")
	assert.ErrorIs(t, err, domain.ErrMaintenanceMode)
	_, err = svc.UpdateHandle(env.Ctx, "42", "Fdy2")
	assert.ErrorIs(t, err, domain.ErrMaintenanceMode)
	assert.Zero(t, env.Count(t, "SELECT COUNT(*) FROM user_growid WHERE user_id = '43'"))

	handle, err := svc.GetHandle(env.Ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Fdy", handle, "lookups stay available")

	require.NoError(t, adm.SetMaintenanceMode(env.Ctx, adminID, false))
	_, err = svc.Register(env.Ctx, "43", "Budi")
	assert.NoError(t, err)
}

func TestRegister_ConcurrentSamePlatformUser(t *testing.T) {
	svc, env := newService(t)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Register(env.Ctx, "42", "Fdy")
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), env.Count(t, "SELECT COUNT(*) FROM user_growid"))
}
