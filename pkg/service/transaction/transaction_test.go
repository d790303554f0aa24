package transaction_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	domainproduct "github.com/amirasaad/storefront/pkg/domain/product"
	"github.com/amirasaad/storefront/pkg/service/admin"
	balancesvc "github.com/amirasaad/storefront/pkg/service/balance"
	"github.com/amirasaad/storefront/pkg/service/product"
	"github.com/amirasaad/storefront/pkg/service/transaction"
	"github.com/amirasaad/storefront/pkg/service/user"
	"github.com/amirasaad/storefront/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const adminID = "1"

type harness struct {
	*testutils.Env
	identity *user.Service
	balances *balancesvc.Service
	products *product.Service
	admin    *admin.Service
	engine   *transaction.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := testutils.NewEnv(t)
	h := &harness{Env: env}
	h.admin = admin.New(env.UoW, env.Cache, admin.Config{AdminIDs: []string{adminID}}, env.Logger)
	h.identity = user.New(env.UoW, env.Cache, env.Locks, h.admin, user.DefaultConfig(), env.Logger)
	h.balances = balancesvc.New(env.UoW, env.Cache, env.Locks, env.Bus, balancesvc.DefaultConfig(), env.Logger)
	h.products = product.New(env.UoW, env.Cache, h.admin, product.DefaultConfig(), env.Logger)
	h.useBalances(h.balances)
	return h
}

// useBalances rebuilds the engine around balances.
func (h *harness) useBalances(balances transaction.Balances) {
	h.engine = transaction.New(transaction.Deps{
		Uow:      h.UoW,
		Identity: h.identity,
		Balances: balances,
		Catalog:  h.products,
		Admin:    h.admin,
		Locks:    h.Locks,
		Bus:      h.Bus,
		Logger:   h.Logger,
	}, transaction.DefaultConfig())
}

func (h *harness) register(t *testing.T, pid, handle string, b balance.Balance) {
	t.Helper()
	_, err := h.identity.Register(h.Ctx, pid, handle)
	require.NoError(t, err)
	users, err := h.UoW.UserRepository()
	require.NoError(t, err)
	require.NoError(t, users.UpdateBalance(h.Ctx, handle, b))
}

func (h *harness) stock(t *testing.T, code string, price float64, content string) {
	t.Helper()
	_, err := h.products.CreateProduct(h.Ctx, product.NewProduct{Code: code, Name: "Item " + code, Price: price}, "")
	require.NoError(t, err)
	_, err = h.products.AddStock(h.Ctx, code, content, "admin")
	require.NoError(t, err)
}

func TestProcessPurchase_Success(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(0, 1, 0))
	h.stock(t, "BUAH", 10, "A\nB\nC")

	res, err := h.engine.ProcessPurchase(h.Ctx, "42", "BUAH", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, res.Content)
	assert.Equal(t, int64(20), res.TotalPaid)
	assert.Equal(t, int64(80), res.NewBalance.TotalWL())

	assert.Equal(t, int64(2), h.Count(t, "SELECT COUNT(*) FROM stock WHERE status = 'SOLD' AND buyer_growid = ?", "Fdy"))
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM balance_transactions WHERE type = 'PURCHASE'"))
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM transactions WHERE status = 'COMPLETED'"))

	count, err := h.products.GetStockCount(h.Ctx, "BUAH")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Len(t, h.Bus.PublishedOf(events.EventTypePurchaseCompleted), 1)
	assert.Len(t, h.Bus.PublishedOf(events.EventTypeTransactionCompleted), 1)
}

func TestProcessPurchase_ExactBalance(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(0, 1, 0))
	h.stock(t, "P", 100, "only")

	res, err := h.engine.ProcessPurchase(h.Ctx, "42", "P", 1)
	require.NoError(t, err)
	assert.True(t, res.NewBalance.IsZero())
}

func TestProcessPurchase_Validation(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(0, 1, 0))
	h.stock(t, "BUAH", 10, "A")

	tests := []struct {
		name  string
		buyer string
		code  string
		qty   int
		want  error
	}{
		{"zero quantity", "42", "BUAH", 0, domain.ErrInvalidAmount},
		{"negative quantity", "42", "BUAH", -3, domain.ErrInvalidAmount},
		{"unregistered", "7", "BUAH", 1, domain.ErrNotRegistered},
		{"unknown product", "42", "NOPE", 1, domain.ErrProductNotFound},
		{"not enough stock", "42", "BUAH", 2, domain.ErrOutOfStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.ProcessPurchase(h.Ctx, tt.buyer, tt.code, tt.qty)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM stock WHERE status = 'AVAILABLE'"))
}

func TestProcessPurchase_Insufficient(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(5, 0, 0))
	h.stock(t, "BUAH", 10, "A")

	_, err := h.engine.ProcessPurchase(h.Ctx, "42", "BUAH", 1)
	require.ErrorIs(t, err, domain.ErrInsufficient)
	assert.Contains(t, domain.Message(err), "5 WL")
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM stock WHERE status = 'AVAILABLE'"))
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM transactions WHERE status = 'FAILED'"))
	assert.Len(t, h.Bus.PublishedOf(events.EventTypeTransactionFailed), 1)
}

func TestProcessPurchase_OverflowRejected(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(0, 0, 100))
	h.stock(t, "GEM", 600_000, "x\ny")

	_, err := h.engine.ProcessPurchase(h.Ctx, "42", "GEM", 2)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestProcessPurchase_StaleCacheRecovers(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(0, 1, 0))
	h.stock(t, "P", 50, "unit")
	require.NoError(t, h.Cache.Set(h.Ctx, cache.BalanceKey("Fdy"), balance.Zero, time.Minute, false))

	res, err := h.engine.ProcessPurchase(h.Ctx, "42", "P", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.NewBalance.TotalWL())

	b, err := h.balances.Refresh(h.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, int64(50), b.TotalWL())
}

type mockBalances struct {
	*balancesvc.Service
	mock.Mock
}

func (m *mockBalances) UpdateBalance(ctx context.Context, u balancesvc.Update) (balancesvc.Result, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(balancesvc.Result), args.Error(1)
}

func TestProcessPurchase_RollsBackStockWhenDebitFails(t *testing.T) {
	h := newHarness(t)
	failing := &mockBalances{Service: h.balances}
	failing.On("UpdateBalance", mock.Anything, mock.MatchedBy(func(u balancesvc.Update) bool {
		return u.Type == ledger.TypePurchase && u.WL == -10
	})).Return(balancesvc.Result{}, errors.New("disk I/O error")).Once()
	h.useBalances(failing)

	h.register(t, "42", "Fdy", balance.New(0, 1, 0))
	h.stock(t, "BUAH", 10, "A")
	_, err := h.products.GetStockCount(h.Ctx, "BUAH")
	require.NoError(t, err)

	_, err = h.engine.ProcessPurchase(h.Ctx, "42", "BUAH", 1)
	require.ErrorIs(t, err, domain.ErrTransaction)
	assert.Equal(t, "TransactionFailed", domain.Code(err))

	lines, err := h.products.GetAvailableStock(h.Ctx, "BUAH", 5)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Nil(t, lines[0].BuyerHandle)
	assert.Equal(t, domainproduct.StockAvailable, lines[0].Status)

	count, err := h.products.GetStockCount(h.Ctx, "BUAH")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "rollback invalidates the stock count")
	assert.Zero(t, h.Count(t, "SELECT COUNT(*) FROM balance_transactions"))
	failing.AssertExpectations(t)
}

func TestProcessPurchase_MaintenanceShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(0, 1, 0))
	h.stock(t, "BUAH", 10, "A")
	require.NoError(t, h.admin.SetMaintenanceMode(h.Ctx, adminID, true))

	_, err := h.engine.ProcessPurchase(h.Ctx, "42", "BUAH", 1)
	require.ErrorIs(t, err, domain.ErrMaintenanceMode)
	assert.Equal(t, "MaintenanceMode", domain.Code(err))
	assert.Zero(t, h.Count(t, "SELECT COUNT(*) FROM transactions"))
	assert.Zero(t, h.Count(t, "SELECT COUNT(*) FROM balance_transactions"))
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM stock WHERE status = 'AVAILABLE'"))

	_, err = h.engine.ProcessDeposit(h.Ctx, "42", transaction.Amount{WL: 1}, "")
	assert.ErrorIs(t, err, domain.ErrMaintenanceMode)
}

func TestProcessPurchase_ConcurrentBuyersOneUnit(t *testing.T) {
	h := newHarness(t)
	h.register(t, "U", "Buyer", balance.New(0, 5, 0))
	h.stock(t, "P", 10, "last")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.ProcessPurchase(context.Background(), "U", "P", 1)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrLockFailed):
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM balance_transactions WHERE type = 'PURCHASE'"))
	count, err := h.products.GetStockCount(h.Ctx, "P")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcessDepositAndWithdrawal(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.Zero)

	res, err := h.engine.ProcessDeposit(h.Ctx, "42", transaction.Amount{DL: 2, WL: 50}, "")
	require.NoError(t, err)
	assert.Equal(t, balance.New(50, 2, 0), res.NewBalance)

	res, err = h.engine.ProcessWithdrawal(h.Ctx, "42", transaction.Amount{WL: 75}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(175), res.NewBalance.TotalWL())

	_, err = h.engine.ProcessWithdrawal(h.Ctx, "42", transaction.Amount{DL: 2}, "")
	assert.ErrorIs(t, err, domain.ErrInsufficient)

	_, err = h.engine.ProcessDeposit(h.Ctx, "42", transaction.Amount{}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = h.engine.ProcessDeposit(h.Ctx, "42", transaction.Amount{WL: -1}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = h.engine.ProcessDeposit(h.Ctx, "404", transaction.Amount{WL: 1}, "")
	assert.ErrorIs(t, err, domain.ErrNotRegistered)

	assert.Len(t, h.Bus.PublishedOf(events.EventTypeDepositCompleted), 1)
	assert.Len(t, h.Bus.PublishedOf(events.EventTypeWithdrawalCompleted), 1)
}

func TestAdminDeposit_AuditedAndGuarded(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.Zero)

	_, err := h.engine.ProcessDeposit(h.Ctx, "42", transaction.Amount{BGL: 1}, "999")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = h.engine.ProcessDeposit(h.Ctx, "42", transaction.Amount{BGL: 1}, adminID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM balance_transactions WHERE type = 'ADMIN_ADD'"))

	_, err = h.engine.ProcessWithdrawal(h.Ctx, "42", transaction.Amount{DL: 1}, adminID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.Count(t, "SELECT COUNT(*) FROM balance_transactions WHERE type = 'ADMIN_REMOVE'"))

	logs, err := h.admin.RecentLogs(h.Ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestGetTransactionHistory(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.Zero)
	h.stock(t, "BUAH", 10, "A\nB")

	_, err := h.engine.ProcessDeposit(h.Ctx, "42", transaction.Amount{DL: 1}, "")
	require.NoError(t, err)
	_, err = h.engine.ProcessPurchase(h.Ctx, "42", "BUAH", 2)
	require.NoError(t, err)

	history, err := h.engine.GetTransactionHistory(h.Ctx, "42", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ledger.TypePurchase, history[0].Type)
	assert.Equal(t, int64(-20), history[0].AmountWL)
	assert.Equal(t, "-20 WL", history[0].AmountDisplay)
	assert.Equal(t, "Item BUAH", history[0].ProductName)
	assert.Equal(t, "BUAH", history[0].ProductCode)
	assert.Equal(t, "+1 DL", history[1].AmountDisplay)

	page, err := h.engine.GetTransactionHistory(h.Ctx, "42", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ledger.TypeDeposit, page[0].Type)
}

func TestGetTransactionHistory_SharedProductName(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.New(0, 1, 0))
	for _, code := range []string{"BUAH", "BUAH2"} {
		_, err := h.products.CreateProduct(h.Ctx, product.NewProduct{Code: code, Name: "Buah", Price: 10}, "")
		require.NoError(t, err)
		_, err = h.products.AddStock(h.Ctx, code, "A", "admin")
		require.NoError(t, err)
	}

	_, err := h.engine.ProcessPurchase(h.Ctx, "42", "BUAH2", 1)
	require.NoError(t, err)
	_, err = h.engine.ProcessPurchase(h.Ctx, "42", "BUAH", 1)
	require.NoError(t, err)
	// A row journaled without a code cannot be told apart by name alone.
	_, err = h.balances.UpdateBalance(h.Ctx, balancesvc.Update{
		Handle: "Fdy", WL: -1, Details: "Purchase 1x Buah", Type: ledger.TypePurchase,
	})
	require.NoError(t, err)

	history, err := h.engine.GetTransactionHistory(h.Ctx, "42", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Empty(t, history[0].ProductCode)
	assert.Equal(t, "Buah", history[0].ProductName)
	assert.Equal(t, "BUAH", history[1].ProductCode)
	assert.Equal(t, "BUAH2", history[2].ProductCode)
	assert.Equal(t, "Buah", history[2].ProductName)
	assert.Equal(t, "Purchase 1x Buah", history[2].Details)
}

func TestProcessDeposit_RejectsOverflowingTiers(t *testing.T) {
	h := newHarness(t)
	h.register(t, "42", "Fdy", balance.Zero)

	for _, amount := range []transaction.Amount{
		// 2^62+5 DL wraps to +500 WL when multiplied by 100.
		{DL: 4611686018427387909},
		{BGL: balance.MaxBGL + 1},
		{WL: balance.MaxWL + 1},
	} {
		_, err := h.engine.ProcessDeposit(h.Ctx, "42", amount, "")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = h.engine.ProcessWithdrawal(h.Ctx, "42", amount, adminID)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}

	b, err := h.balances.GetBalance(h.Ctx, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, balance.Zero, b)
	assert.Zero(t, h.Count(t, "SELECT COUNT(*) FROM balance_transactions"))
}
