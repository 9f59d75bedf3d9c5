package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cradoe/vestra/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var withdrawalRowColumns = []string{
	"id", "user_id", "amount", "status", "pin_verified", "admin_notes", "requested_at", "processed_at", "processed_by",
}

func expectLockedWithdrawal(mock sqlmock.Sqlmock, status string) {
	mock.ExpectQuery(`SELECT (.+) FROM withdrawals w WHERE w.id = \$1 FOR UPDATE`).
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows(withdrawalRowColumns).
			AddRow("w-1", "u-1", "200.00", status, true, nil, fixedNow, nil, nil))
}

func expectLockedOwner(mock sqlmock.Sqlmock, balance string) {
	mock.ExpectQuery(`SELECT balance, email, full_name FROM profiles WHERE id = \$1 FOR UPDATE`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance", "email", "full_name"}).
			AddRow(balance, "ada@example.com", "Ada Lovelace"))
}

func expectWithdrawalUpdate(mock sqlmock.Sqlmock, status string) {
	mock.ExpectQuery(`UPDATE withdrawals SET status = \$1, processed_at = NOW\(\), processed_by = \$2`).
		WithArgs(status, "admin-1", sqlmock.AnyArg(), "w-1").
		WillReturnRows(sqlmock.NewRows([]string{"processed_at"}).AddRow(fixedNow))
}

func TestWithdrawalProcess_Approve(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	mock.ExpectBegin()
	expectLockedWithdrawal(mock, models.WithdrawalStatusPending)
	expectLockedOwner(mock, "1000.00")
	mock.ExpectExec(`UPDATE profiles SET balance = \$1`).
		WithArgs(decimalArg("800"), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectTransaction(mock, "u-1", models.TransactionTypeWithdrawal, "-200", "1000", "800")
	expectWithdrawalUpdate(mock, models.WithdrawalStatusApproved)
	expectActivity(mock, "u-1", "withdrawal_approved")
	mock.ExpectCommit()

	withdrawal, err := repo.Process("w-1", WithdrawalDecision{AdminID: "admin-1", Approve: true, Notes: "ok", IP: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusApproved, withdrawal.Status)
	assert.Equal(t, "admin-1", withdrawal.ProcessedBy.String)
	assert.True(t, withdrawal.ProcessedAt.Valid)
	assert.True(t, withdrawal.Owner.Balance.Decimal.Equal(decimal.NewFromInt(800)))
}

func TestWithdrawalProcess_RejectLeavesBalance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	mock.ExpectBegin()
	expectLockedWithdrawal(mock, models.WithdrawalStatusPending)
	expectLockedOwner(mock, "1000.00")
	expectWithdrawalUpdate(mock, models.WithdrawalStatusRejected)
	expectActivity(mock, "u-1", "withdrawal_rejected")
	mock.ExpectCommit()

	withdrawal, err := repo.Process("w-1", WithdrawalDecision{AdminID: "admin-1", Approve: false})
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusRejected, withdrawal.Status)
	assert.True(t, withdrawal.Owner.Balance.Decimal.Equal(decimal.NewFromInt(1000)))
	assert.False(t, withdrawal.AdminNotes.Valid)
}

func TestWithdrawalProcess_Failures(t *testing.T) {
	tests := []struct {
		name    string
		approve bool
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:    "not found",
			approve: true,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM withdrawals w WHERE w.id = \$1 FOR UPDATE`).
					WithArgs("w-1").
					WillReturnRows(sqlmock.NewRows(withdrawalRowColumns))
			},
			wantErr: ErrRecordNotFound,
		},
		{
			name:    "already processed",
			approve: true,
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedWithdrawal(mock, models.WithdrawalStatusApproved)
			},
			wantErr: ErrNotPending,
		},
		{
			name:    "insufficient balance",
			approve: true,
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedWithdrawal(mock, models.WithdrawalStatusPending)
				expectLockedOwner(mock, "199.99")
			},
			wantErr: ErrInsufficientBalance,
		},
		{
			name:    "ledger insert fails",
			approve: true,
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedWithdrawal(mock, models.WithdrawalStatusPending)
				expectLockedOwner(mock, "1000.00")
				mock.ExpectExec(`UPDATE profiles SET balance = \$1`).
					WithArgs(decimalArg("800"), "u-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`INSERT INTO transactions`).WillReturnError(errors.New("disk full"))
			},
		},
		{
			name:    "activity insert fails",
			approve: false,
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedWithdrawal(mock, models.WithdrawalStatusPending)
				expectLockedOwner(mock, "1000.00")
				expectWithdrawalUpdate(mock, models.WithdrawalStatusRejected)
				mock.ExpectQuery(`INSERT INTO activity_logs`).WillReturnError(errors.New("connection reset"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewWithdrawalRepository(db)

			mock.ExpectBegin()
			tt.setup(mock)
			mock.ExpectRollback()

			withdrawal, err := repo.Process("w-1", WithdrawalDecision{AdminID: "admin-1", Approve: tt.approve})
			require.Error(t, err)
			assert.Nil(t, withdrawal)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWithdrawalCreate(t *testing.T) {
	t.Run("pending request with verified pin", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWithdrawalRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT balance FROM profiles WHERE id = \$1 FOR UPDATE`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000.00"))
		mock.ExpectQuery(`INSERT INTO withdrawals`).
			WithArgs("u-1", decimalArg("1000"), models.WithdrawalStatusPending, true).
			WillReturnRows(sqlmock.NewRows([]string{"id", "requested_at"}).AddRow("w-9", fixedNow))
		expectActivity(mock, "u-1", ActionWithdrawalRequested)
		mock.ExpectCommit()

		withdrawal, err := repo.Create("u-1", decimal.NewFromInt(1000), "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "w-9", withdrawal.ID)
		assert.True(t, withdrawal.PinVerified)
		assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)
	})

	t.Run("more than balance", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWithdrawalRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT balance FROM profiles WHERE id = \$1 FOR UPDATE`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000.00"))
		mock.ExpectRollback()

		_, err := repo.Create("u-1", decimal.RequireFromString("1000.01"), "")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewWithdrawalRepository(db)

		_, err := repo.Create("u-1", decimal.Zero, "")
		assert.ErrorIs(t, err, ErrAmountOutOfRange)
	})
}

func TestWithdrawalList_Filters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	columns := append(append([]string{}, withdrawalRowColumns...), "owner.full_name", "owner.email", "owner.balance")

	mock.ExpectQuery(`FROM withdrawals w LEFT JOIN profiles p`).
		WithArgs("pending", "ada", "%ada%").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("w-1", "u-1", "200.00", "pending", true, nil, fixedNow, nil, nil, "Ada Lovelace", "ada@example.com", "1000.00"))

	withdrawals, err := repo.List("pending", "ada")
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, "ada@example.com", withdrawals[0].Owner.Email.String)
	assert.True(t, withdrawals[0].Owner.Balance.Decimal.Equal(decimal.NewFromInt(1000)))
}
