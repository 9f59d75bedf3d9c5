package mocks

import (
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockWithdrawalRepo struct {
	mock.Mock
}

func (m *MockWithdrawalRepo) Create(userID string, amount decimal.Decimal, ip string) (*models.Withdrawal, error) {
	args := m.Called(userID, amount, ip)
	withdrawal, _ := args.Get(0).(*models.Withdrawal)
	return withdrawal, args.Error(1)
}

func (m *MockWithdrawalRepo) ListByUser(userID string) ([]models.Withdrawal, error) {
	args := m.Called(userID)
	withdrawals, _ := args.Get(0).([]models.Withdrawal)
	return withdrawals, args.Error(1)
}

func (m *MockWithdrawalRepo) List(status, search string) ([]models.Withdrawal, error) {
	args := m.Called(status, search)
	withdrawals, _ := args.Get(0).([]models.Withdrawal)
	return withdrawals, args.Error(1)
}

func (m *MockWithdrawalRepo) Process(id string, decision repository.WithdrawalDecision) (*models.Withdrawal, error) {
	args := m.Called(id, decision)
	withdrawal, _ := args.Get(0).(*models.Withdrawal)
	return withdrawal, args.Error(1)
}
