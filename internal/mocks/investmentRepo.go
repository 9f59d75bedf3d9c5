package mocks

import (
	"github.com/cradoe/vestra/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockInvestmentPlanRepo struct {
	mock.Mock
}

func (m *MockInvestmentPlanRepo) ListActive() ([]models.InvestmentPlan, error) {
	args := m.Called()
	plans, _ := args.Get(0).([]models.InvestmentPlan)
	return plans, args.Error(1)
}

func (m *MockInvestmentPlanRepo) GetOne(id string) (*models.InvestmentPlan, bool, error) {
	args := m.Called(id)
	plan, _ := args.Get(0).(*models.InvestmentPlan)
	return plan, args.Bool(1), args.Error(2)
}

func (m *MockInvestmentPlanRepo) Insert(plan *models.InvestmentPlan) (bool, error) {
	args := m.Called(plan)
	return args.Bool(0), args.Error(1)
}

type MockInvestmentRepo struct {
	mock.Mock
}

func (m *MockInvestmentRepo) Create(userID, planID string, amount decimal.Decimal, ip string) (*models.Investment, error) {
	args := m.Called(userID, planID, amount, ip)
	investment, _ := args.Get(0).(*models.Investment)
	return investment, args.Error(1)
}

func (m *MockInvestmentRepo) ListByUser(userID string) ([]models.Investment, error) {
	args := m.Called(userID)
	investments, _ := args.Get(0).([]models.Investment)
	return investments, args.Error(1)
}

func (m *MockInvestmentRepo) Summary(userID string) (*models.InvestmentSummary, error) {
	args := m.Called(userID)
	summary, _ := args.Get(0).(*models.InvestmentSummary)
	return summary, args.Error(1)
}
