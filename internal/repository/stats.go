package repository

import (
	"context"

	"github.com/cradoe/vestra/internal/models"
	"github.com/jmoiron/sqlx"
)

type StatsRepository interface {
	Platform() (*models.PlatformStats, error)
	Daily(days int) ([]models.DailyStat, error)
}

type StatsRepositoryImpl struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &StatsRepositoryImpl{db: db}
}

func (repo *StatsRepositoryImpl) Platform() (*models.PlatformStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats models.PlatformStats

	query := `
		SELECT
			(SELECT COUNT(*) FROM profiles) AS total_users,
			(SELECT COALESCE(SUM(balance), 0) FROM profiles) AS total_balance,
			(SELECT COALESCE(SUM(amount), 0) FROM investments) AS total_investments,
			(SELECT COUNT(*) FROM profiles WHERE pin_status = 'active') AS active_pins,
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending') AS pending_withdrawals`

	if err := repo.db.GetContext(ctx, &stats, query); err != nil {
		return nil, err
	}

	return &stats, nil
}

// Daily returns one row per day for the last days days, oldest first, with
// zero rows for quiet days.
func (repo *StatsRepositoryImpl) Daily(days int) ([]models.DailyStat, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	stats := []models.DailyStat{}

	query := `
		SELECT d.day,
			(SELECT COUNT(*) FROM profiles p WHERE p.created_at >= d.day AND p.created_at < d.day + INTERVAL '1 day') AS signups,
			(SELECT COALESCE(SUM(i.amount), 0) FROM investments i WHERE i.created_at >= d.day AND i.created_at < d.day + INTERVAL '1 day') AS investment_volume
		FROM generate_series(CURRENT_DATE - ($1::int - 1), CURRENT_DATE, INTERVAL '1 day') AS d(day)
		ORDER BY d.day ASC`

	if err := repo.db.SelectContext(ctx, &stats, query, days); err != nil {
		return nil, err
	}

	return stats, nil
}
