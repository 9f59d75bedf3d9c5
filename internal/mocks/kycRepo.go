package mocks

import (
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockKycRepo struct {
	mock.Mock
}

func (m *MockKycRepo) Submit(submission *models.KYCSubmission, ip string) error {
	return m.Called(submission, ip).Error(0)
}

func (m *MockKycRepo) LatestByUser(userID string) (*models.KYCSubmission, bool, error) {
	args := m.Called(userID)
	submission, _ := args.Get(0).(*models.KYCSubmission)
	return submission, args.Bool(1), args.Error(2)
}

func (m *MockKycRepo) List(status string) ([]models.KYCSubmission, error) {
	args := m.Called(status)
	submissions, _ := args.Get(0).([]models.KYCSubmission)
	return submissions, args.Error(1)
}

func (m *MockKycRepo) Decide(id string, decision repository.KycDecision) (*models.KYCSubmission, error) {
	args := m.Called(id, decision)
	submission, _ := args.Get(0).(*models.KYCSubmission)
	return submission, args.Error(1)
}
