package mocks

import (
	"github.com/cradoe/vestra/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) ListByUser(userID string, limit int) ([]models.Transaction, error) {
	args := m.Called(userID, limit)
	transactions, _ := args.Get(0).([]models.Transaction)
	return transactions, args.Error(1)
}

type MockStatsRepo struct {
	mock.Mock
}

func (m *MockStatsRepo) Platform() (*models.PlatformStats, error) {
	args := m.Called()
	stats, _ := args.Get(0).(*models.PlatformStats)
	return stats, args.Error(1)
}

func (m *MockStatsRepo) Daily(days int) ([]models.DailyStat, error) {
	args := m.Called(days)
	stats, _ := args.Get(0).([]models.DailyStat)
	return stats, args.Error(1)
}
