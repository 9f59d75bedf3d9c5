package repository

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return sqlx.NewDb(db, "sqlmock"), mock
}

// decimalArg matches a numeric argument by value, so "500" matches "500.00".
type decimalArg string

func (a decimalArg) Match(v driver.Value) bool {
	want := decimal.RequireFromString(string(a))

	var got decimal.Decimal
	if err := got.Scan(v); err != nil {
		return false
	}
	return got.Equal(want)
}

func expectActivity(mock sqlmock.Sqlmock, userID, action string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`INSERT INTO activity_logs`).
		WithArgs(userID, action, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("log-1", fixedNow))
}

func expectTransaction(mock sqlmock.Sqlmock, userID, kind, amount, before, after string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(userID, kind, decimalArg(amount), decimalArg(before), decimalArg(after), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("txn-1", fixedNow))
}
