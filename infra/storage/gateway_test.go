package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockGateway(t *testing.T, attempts int) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDb.Close() })
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`select sqlite_version\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"sqlite_version()"}).AddRow("3.45.1"))

	db, err := gorm.Open(sqlite.Dialector{Conn: mockDb}, &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return New(db, discardLogger(), WithRetry(attempts, time.Millisecond)), mock
}

func TestGateway_ExecRetriesTransientLock(t *testing.T) {
	g, mock := newMockGateway(t, 3)
	mock.ExpectExec("UPDATE users").WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("UPDATE users").WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := g.Exec(context.Background(), "UPDATE users SET balance_wl = ? WHERE growid = ?", 10, "Fdy")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_ExecGivesUpAfterMaxAttempts(t *testing.T) {
	g, mock := newMockGateway(t, 3)
	for range 3 {
		mock.ExpectExec("UPDATE users").WillReturnError(errors.New("database is locked"))
	}

	_, err := g.Exec(context.Background(), "UPDATE users SET balance_wl = 0")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_ExecDoesNotRetryPermanentErrors(t *testing.T) {
	g, mock := newMockGateway(t, 3)
	mock.ExpectExec("DELETE FROM users").WillReturnError(errors.New("syntax error"))

	_, err := g.Exec(context.Background(), "DELETE FROM users")
	require.EqualError(t, err, "syntax error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "store.db"),
		BusyTimeout: DefaultBusyTimeout,
		MaxAttempts: DefaultMaxAttempts,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestOpen_AppliesPragmasAndMigrations(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()

	var mode string
	require.NoError(t, g.Query(ctx, &mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, g.Query(ctx, &fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	var rows []struct{ Name string }
	require.NoError(t, g.Query(ctx, &rows, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name"))
	tables := make([]string, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, r.Name)
	}
	for _, want := range []string{
		"admin_logs", "balance_transactions", "bot_settings", "products",
		"stock", "transactions", "user_growid", "users", "world_info",
	} {
		assert.Contains(t, tables, want)
	}

	require.NoError(t, Migrate(g.DB()), "re-running migrations is a no-op")
}

func TestGateway_TransactionRollsBack(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := g.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO users (growid) VALUES (?)", "Fdy").Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, g.Query(ctx, &count, "SELECT COUNT(*) FROM users"))
	assert.Zero(t, count)
}

func TestGateway_ForeignKeysEnforced(t *testing.T) {
	g := openTestGateway(t)
	_, err := g.Exec(context.Background(),
		"INSERT INTO user_growid (user_id, growid) VALUES (?, ?)", "42", "Ghost")
	assert.Error(t, err)
}
