package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finsync/backend/internal/domain/ledger"
	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked postgres connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	db, err := Open(dialector, &config.DatabaseConfig{MaxOpenConns: 5, MaxIdleConns: 2}, Options{Logger: zap.NewNop()})
	require.NoError(t, err)

	return db, mock, mockDB
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 5, stats.MaxOpenConnections)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing()
	mock.ExpectPing()

	db, err := Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), nil, Options{})
	require.NoError(t, err)

	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_OpenFailsWhenPingFails(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("rollback on error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return assert.AnError
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReloadTable_PostgresUsesTruncate(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "cost_centers"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(`TRUNCATE TABLE "cost_centers"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	store := NewGormReferenceStore(db.DB, 0)
	res, err := store.ReloadCostCenters(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.RowsDeleted)
	assert.Equal(t, int64(0), res.RowsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_DeleteUsesRawRangeAndBranches(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	w := ledger.ReceivableWindow(ledger.NewPeriod(2025, 6), []int{1001, 3001})

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "receivables" WHERE projected_payment_date BETWEEN \$1 AND \$2 AND branch_code IN \(\$3,\$4\)`).
		WithArgs(w.RawFrom, w.RawTo, 1001, 3001).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	store := NewGormReceivableStore(db.DB, 0)
	_, err := store.ReplaceWindow(context.Background(), w, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStoreWriteFailure)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}
