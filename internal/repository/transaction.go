package repository

import (
	"context"

	"github.com/cradoe/vestra/internal/models"
	"github.com/jmoiron/sqlx"
)

type TransactionRepository interface {
	ListByUser(userID string, limit int) ([]models.Transaction, error)
}

type TransactionRepositoryImpl struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

// insertTransaction writes a ledger entry. It is only called inside the
// transaction that changes the balance.
func insertTransaction(ctx context.Context, tx *sqlx.Tx, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, type, amount, balance_before, balance_after, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return tx.QueryRowxContext(ctx, query,
		t.UserID,
		t.Type,
		t.Amount,
		t.BalanceBefore,
		t.BalanceAfter,
		t.ReferenceID,
		t.Description,
	).Scan(&t.ID, &t.CreatedAt)
}

func (repo *TransactionRepositoryImpl) ListByUser(userID string, limit int) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	transactions := []models.Transaction{}

	query := `
		SELECT id, user_id, type, amount, balance_before, balance_after, reference_id, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := repo.db.SelectContext(ctx, &transactions, query, userID, limit); err != nil {
		return nil, err
	}

	return transactions, nil
}
