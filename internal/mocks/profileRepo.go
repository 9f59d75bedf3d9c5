package mocks

import (
	"time"

	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) Insert(profile *models.Profile) (string, error) {
	args := m.Called(profile)
	return args.String(0), args.Error(1)
}

func (m *MockProfileRepo) GetOne(id string) (*models.Profile, bool, error) {
	args := m.Called(id)
	profile, _ := args.Get(0).(*models.Profile)
	return profile, args.Bool(1), args.Error(2)
}

func (m *MockProfileRepo) GetByEmail(email string) (*models.Profile, bool, error) {
	args := m.Called(email)
	profile, _ := args.Get(0).(*models.Profile)
	return profile, args.Bool(1), args.Error(2)
}

func (m *MockProfileRepo) UpdateLastLogin(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockProfileRepo) UpdateDetails(id string, fullName, avatarURL *string) error {
	return m.Called(id, fullName, avatarURL).Error(0)
}

func (m *MockProfileRepo) List(search string, limit, offset int) ([]models.Profile, int, error) {
	args := m.Called(search, limit, offset)
	profiles, _ := args.Get(0).([]models.Profile)
	return profiles, args.Int(1), args.Error(2)
}

func (m *MockProfileRepo) ListWithPins() ([]models.Profile, error) {
	args := m.Called()
	profiles, _ := args.Get(0).([]models.Profile)
	return profiles, args.Error(1)
}

func (m *MockProfileRepo) SetPin(id, pinHash string, expiresAt time.Time) error {
	return m.Called(id, pinHash, expiresAt).Error(0)
}

func (m *MockProfileRepo) ChangePin(id, pinHash string) error {
	return m.Called(id, pinHash).Error(0)
}

func (m *MockProfileRepo) RevokePin(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockProfileRepo) ExpirePin(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockProfileRepo) RecordPinUse(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockProfileRepo) AdminUpdate(id string, change repository.ProfileChange) (*models.Profile, error) {
	args := m.Called(id, change)
	profile, _ := args.Get(0).(*models.Profile)
	return profile, args.Error(1)
}

func (m *MockProfileRepo) PromoteAdmin(email string) (*models.Profile, error) {
	args := m.Called(email)
	profile, _ := args.Get(0).(*models.Profile)
	return profile, args.Error(1)
}
