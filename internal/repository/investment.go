package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cradoe/vestra/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const planColumns = `id, name, plan_type, min_amount, max_amount, expected_returns, duration_days, is_active, created_at`

type InvestmentPlanRepository interface {
	ListActive() ([]models.InvestmentPlan, error)
	GetOne(id string) (*models.InvestmentPlan, bool, error)
	Insert(plan *models.InvestmentPlan) (bool, error)
}

type InvestmentPlanRepositoryImpl struct {
	db *sqlx.DB
}

func NewInvestmentPlanRepository(db *sqlx.DB) InvestmentPlanRepository {
	return &InvestmentPlanRepositoryImpl{db: db}
}

func (repo *InvestmentPlanRepositoryImpl) ListActive() ([]models.InvestmentPlan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	plans := []models.InvestmentPlan{}

	query := `SELECT ` + planColumns + ` FROM investment_plans WHERE is_active = TRUE ORDER BY min_amount ASC`

	if err := repo.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, err
	}

	return plans, nil
}

func (repo *InvestmentPlanRepositoryImpl) GetOne(id string) (*models.InvestmentPlan, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var plan models.InvestmentPlan

	err := repo.db.GetContext(ctx, &plan, `SELECT `+planColumns+` FROM investment_plans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &plan, true, nil
}

// Insert adds a plan unless one with the same name exists, and reports whether it did.
func (repo *InvestmentPlanRepositoryImpl) Insert(plan *models.InvestmentPlan) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO investment_plans (name, plan_type, min_amount, max_amount, expected_returns, duration_days, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING`

	result, err := repo.db.ExecContext(ctx, query,
		plan.Name,
		plan.PlanType,
		plan.MinAmount,
		plan.MaxAmount,
		plan.ExpectedReturns,
		plan.DurationDays,
		plan.IsActive,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	return rows > 0, err
}

type InvestmentRepository interface {
	Create(userID, planID string, amount decimal.Decimal, ip string) (*models.Investment, error)
	ListByUser(userID string) ([]models.Investment, error)
	Summary(userID string) (*models.InvestmentSummary, error)
}

type InvestmentRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewInvestmentRepository(db *sqlx.DB) InvestmentRepository {
	return &InvestmentRepositoryImpl{db: db, now: time.Now}
}

// Create places amount into a plan. Plan limits are inclusive on both ends.
// The balance is read under a row lock and debited in the same transaction
// that inserts the investment and its ledger entry.
func (repo *InvestmentRepositoryImpl) Create(userID, planID string, amount decimal.Decimal, ip string) (*models.Investment, error) {
	var investment models.Investment

	err := runInTx(repo.db, func(ctx context.Context, tx *sqlx.Tx) error {
		var plan models.InvestmentPlan

		if err := tx.GetContext(ctx, &plan, `SELECT `+planColumns+` FROM investment_plans WHERE id = $1`, planID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		if !plan.IsActive {
			return ErrPlanInactive
		}
		if amount.LessThan(plan.MinAmount) || amount.GreaterThan(plan.MaxAmount) {
			return ErrAmountOutOfRange
		}

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

		start := repo.now().UTC()
		investment = models.Investment{
			UserID:            userID,
			PlanID:            plan.ID,
			Amount:            amount,
			Status:            models.InvestmentStatusActive,
			ReturnsPercentage: decimal.NewNullDecimal(plan.ExpectedReturns),
			StartDate:         start,
			PlanName:          sql.NullString{String: plan.Name, Valid: true},
			PlanType:          sql.NullString{String: plan.PlanType, Valid: true},
		}
		if plan.DurationDays.Valid {
			investment.EndDate = sql.NullTime{Time: start.AddDate(0, 0, int(plan.DurationDays.Int32)), Valid: true}
		}

		query := `
			INSERT INTO investments (user_id, plan_id, amount, status, returns_percentage, start_date, end_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`

		err = tx.QueryRowxContext(ctx, query,
			investment.UserID,
			investment.PlanID,
			investment.Amount,
			investment.Status,
			investment.ReturnsPercentage,
			investment.StartDate,
			investment.EndDate,
		).Scan(&investment.ID, &investment.CreatedAt)
		if err != nil {
			return err
		}

		newBalance := balance.Sub(amount)

		_, err = tx.ExecContext(ctx, `UPDATE profiles SET balance = $1, updated_at = NOW() WHERE id = $2`, newBalance, userID)
		if err != nil {
			return err
		}

		err = insertTransaction(ctx, tx, &models.Transaction{
			UserID:        userID,
			Type:          models.TransactionTypeInvestment,
			Amount:        amount.Neg(),
			BalanceBefore: balance,
			BalanceAfter:  newBalance,
			ReferenceID:   sql.NullString{String: investment.ID, Valid: true},
			Description:   sql.NullString{String: "Investment in " + plan.Name, Valid: true},
		})
		if err != nil {
			return err
		}

		details := map[string]any{
			"investment_id": investment.ID,
			"plan_id":       plan.ID,
			"plan_name":     plan.Name,
			"amount":        amount.StringFixed(2),
		}
		return insertActivity(ctx, tx, NewActivityLog(userID, ActionInvestmentCreated, details, ip))
	})
	if err != nil {
		return nil, err
	}

	return &investment, nil
}

func (repo *InvestmentRepositoryImpl) ListByUser(userID string) ([]models.Investment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	investments := []models.Investment{}

	query := `
		SELECT i.id, i.user_id, i.plan_id, i.amount, i.status, i.returns_percentage,
			i.start_date, i.end_date, i.created_at, p.name AS plan_name, p.plan_type
		FROM investments i
		LEFT JOIN investment_plans p ON p.id = i.plan_id
		WHERE i.user_id = $1
		ORDER BY i.created_at DESC`

	if err := repo.db.SelectContext(ctx, &investments, query, userID); err != nil {
		return nil, err
	}

	return investments, nil
}

func (repo *InvestmentRepositoryImpl) Summary(userID string) (*models.InvestmentSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var summary models.InvestmentSummary

	query := `
		SELECT COUNT(*) AS active_count, COALESCE(SUM(amount), 0) AS total_invested
		FROM investments
		WHERE user_id = $1 AND status = $2`

	if err := repo.db.GetContext(ctx, &summary, query, userID, models.InvestmentStatusActive); err != nil {
		return nil, err
	}

	return &summary, nil
}
