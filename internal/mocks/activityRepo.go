package mocks

import (
	"github.com/cradoe/vestra/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	args := m.Called(log)
	entry, _ := args.Get(0).(*models.ActivityLog)
	return entry, args.Error(1)
}

func (m *MockActivityRepo) CountConsecutiveActions(userID, action string, history []string, limit int) (int, error) {
	args := m.Called(userID, action, history, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockActivityRepo) Latest(limit int) ([]models.ActivityLog, error) {
	args := m.Called(limit)
	logs, _ := args.Get(0).([]models.ActivityLog)
	return logs, args.Error(1)
}

// ActionIs matches an activity log argument by action.
func ActionIs(action string) any {
	return mock.MatchedBy(func(log *models.ActivityLog) bool {
		return log != nil && log.Action == action
	})
}
