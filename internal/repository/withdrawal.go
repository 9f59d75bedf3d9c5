package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cradoe/vestra/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const withdrawalColumns = `w.id, w.user_id, w.amount, w.status, w.pin_verified, w.admin_notes,
	w.requested_at, w.processed_at, w.processed_by`

type WithdrawalRepository interface {
	Create(userID string, amount decimal.Decimal, ip string) (*models.Withdrawal, error)
	ListByUser(userID string) ([]models.Withdrawal, error)
	List(status, search string) ([]models.Withdrawal, error)
	Process(id string, decision WithdrawalDecision) (*models.Withdrawal, error)
}

type WithdrawalDecision struct {
	AdminID string
	Approve bool
	Notes   string
	IP      string
}

type WithdrawalRepositoryImpl struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) WithdrawalRepository {
	return &WithdrawalRepositoryImpl{db: db}
}

// Create records a pending withdrawal request. The balance is checked under a
// row lock but not debited until an admin approves the request.
func (repo *WithdrawalRepositoryImpl) Create(userID string, amount decimal.Decimal, ip string) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountOutOfRange
	}

	withdrawal := models.Withdrawal{
		UserID:      userID,
		Amount:      amount,
		Status:      models.WithdrawalStatusPending,
		PinVerified: true,
	}

	err := runInTx(repo.db, func(ctx context.Context, tx *sqlx.Tx) error {
		var balance decimal.Decimal

		err := tx.GetContext(ctx, &balance, `SELECT balance FROM profiles WHERE id = $1 FOR UPDATE`, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		if amount.GreaterThan(balance) {
			return ErrInsufficientBalance
		}

		query := `
			INSERT INTO withdrawals (user_id, amount, status, pin_verified)
			VALUES ($1, $2, $3, $4)
			RETURNING id, requested_at`

		err = tx.QueryRowxContext(ctx, query, userID, amount, withdrawal.Status, withdrawal.PinVerified).
			Scan(&withdrawal.ID, &withdrawal.RequestedAt)
		if err != nil {
			return err
		}

		details := map[string]any{"withdrawal_id": withdrawal.ID, "amount": amount.StringFixed(2)}
		return insertActivity(ctx, tx, NewActivityLog(userID, ActionWithdrawalRequested, details, ip))
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

func (repo *WithdrawalRepositoryImpl) ListByUser(userID string) ([]models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	withdrawals := []models.Withdrawal{}

	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals w
		WHERE w.user_id = $1
		ORDER BY w.requested_at DESC`

	if err := repo.db.SelectContext(ctx, &withdrawals, query, userID); err != nil {
		return nil, err
	}

	return withdrawals, nil
}

// List returns every withdrawal with its owner, newest first. An empty status
// or search matches everything.
func (repo *WithdrawalRepositoryImpl) List(status, search string) ([]models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	withdrawals := []models.Withdrawal{}

	query := `
		SELECT ` + withdrawalColumns + `,
			p.full_name AS "owner.full_name", p.email AS "owner.email", p.balance AS "owner.balance"
		FROM withdrawals w
		LEFT JOIN profiles p ON p.id = w.user_id
		WHERE ($1 = '' OR w.status = $1)
			AND ($2 = '' OR p.full_name ILIKE $3 OR p.email ILIKE $3)
		ORDER BY w.requested_at DESC`

	if err := repo.db.SelectContext(ctx, &withdrawals, query, status, search, "%"+search+"%"); err != nil {
		return nil, err
	}

	return withdrawals, nil
}

// Process approves or rejects a pending withdrawal in one transaction. The
// withdrawal row is locked first, then the owner's profile. Approval debits
// the balance read under the lock and writes a ledger entry.
func (repo *WithdrawalRepositoryImpl) Process(id string, decision WithdrawalDecision) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal

	err := runInTx(repo.db, func(ctx context.Context, tx *sqlx.Tx) error {
		query := `
			SELECT ` + withdrawalColumns + `
			FROM withdrawals w
			WHERE w.id = $1
			FOR UPDATE`

		if err := tx.GetContext(ctx, &withdrawal, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		if withdrawal.Status != models.WithdrawalStatusPending {
			return ErrNotPending
		}

		status := models.WithdrawalStatusRejected
		if decision.Approve {
			status = models.WithdrawalStatusApproved
		}

		var owner struct {
			Balance  decimal.Decimal `db:"balance"`
			Email    string          `db:"email"`
			FullName sql.NullString  `db:"full_name"`
		}

		ownerQuery := `SELECT balance, email, full_name FROM profiles WHERE id = $1 FOR UPDATE`

		if err := tx.GetContext(ctx, &owner, ownerQuery, withdrawal.UserID); err != nil {
			return err
		}

		withdrawal.Owner.Email = sql.NullString{String: owner.Email, Valid: true}
		withdrawal.Owner.FullName = owner.FullName
		withdrawal.Owner.Balance = decimal.NewNullDecimal(owner.Balance)

		if decision.Approve {
			if owner.Balance.LessThan(withdrawal.Amount) {
				return ErrInsufficientBalance
			}

			newBalance := owner.Balance.Sub(withdrawal.Amount)

			_, err := tx.ExecContext(ctx, `UPDATE profiles SET balance = $1, updated_at = NOW() WHERE id = $2`,
				newBalance, withdrawal.UserID)
			if err != nil {
				return err
			}

			err = insertTransaction(ctx, tx, &models.Transaction{
				UserID:        withdrawal.UserID,
				Type:          models.TransactionTypeWithdrawal,
				Amount:        withdrawal.Amount.Neg(),
				BalanceBefore: owner.Balance,
				BalanceAfter:  newBalance,
				ReferenceID:   sql.NullString{String: withdrawal.ID, Valid: true},
				Description:   sql.NullString{String: "Withdrawal approved by admin", Valid: true},
			})
			if err != nil {
				return err
			}

			withdrawal.Owner.Balance = decimal.NewNullDecimal(newBalance)
		}

		withdrawal.Status = status
		withdrawal.AdminNotes = sql.NullString{String: decision.Notes, Valid: decision.Notes != ""}
		withdrawal.ProcessedBy = sql.NullString{String: decision.AdminID, Valid: true}

		update := `
			UPDATE withdrawals
			SET status = $1, processed_at = NOW(), processed_by = $2, admin_notes = $3
			WHERE id = $4
			RETURNING processed_at`

		err := tx.GetContext(ctx, &withdrawal.ProcessedAt, update, status, decision.AdminID, withdrawal.AdminNotes, id)
		if err != nil {
			return err
		}

		details := map[string]any{
			"admin_id":      decision.AdminID,
			"withdrawal_id": withdrawal.ID,
			"amount":        withdrawal.Amount.StringFixed(2),
			"notes":         decision.Notes,
		}
		return insertActivity(ctx, tx, NewActivityLog(withdrawal.UserID, fmt.Sprintf("withdrawal_%s", status), details, decision.IP))
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}
