package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cradoe/vestra/internal/mocks"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	env          *testEnv
	profileRepo  *mocks.MockProfileRepo
	activityRepo *mocks.MockActivityRepo
	statsRepo    *mocks.MockStatsRepo
	handler      *AdminHandler
}

func newAdminFixture(t *testing.T) *adminFixture {
	f := &adminFixture{
		env:          newTestEnv(t),
		profileRepo:  new(mocks.MockProfileRepo),
		activityRepo: new(mocks.MockActivityRepo),
		statsRepo:    new(mocks.MockStatsRepo),
	}

	f.handler = NewAdminHandler(&AdminHandler{
		ProfileRepo:  f.profileRepo,
		ActivityRepo: f.activityRepo,
		StatsRepo:    f.statsRepo,
		ErrHandler:   f.env.ErrHandler,
	})

	return f
}

func updateUserRequest(t *testing.T, userID string, body any) *http.Request {
	req := jsonRequest(t, http.MethodPatch, "/v1/admin/users/"+userID, body)
	req.SetPathValue("id", userID)
	return asProfile(req, testProfile(testAdminID, models.RoleAdmin))
}

func TestHandleUpdateUser(t *testing.T) {
	f := newAdminFixture(t)

	updated := testProfile(testUserID, models.RoleManager)
	updated.Balance = decimal.RequireFromString("42.10")

	f.profileRepo.On("AdminUpdate", testUserID, mock.MatchedBy(func(c repository.ProfileChange) bool {
		return c.AdminID == testAdminID &&
			c.Balance != nil && c.Balance.Equal(decimal.RequireFromString("42.1")) &&
			c.Role != nil && *c.Role == models.RoleManager
	})).Return(updated, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleUpdateUser(rr, updateUserRequest(t, testUserID, map[string]any{
		"balance": "42.1",
		"role":    models.RoleManager,
	}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	data := responseData(t, rr)
	require.Equal(t, "42.10", data["balance"])
	require.Equal(t, models.RoleManager, data["role"])

	f.profileRepo.AssertExpectations(t)
}

func TestHandleUpdateUser_EmptyBodyStillApplies(t *testing.T) {
	f := newAdminFixture(t)

	f.profileRepo.On("AdminUpdate", testUserID, mock.MatchedBy(func(c repository.ProfileChange) bool {
		return c.Balance == nil && c.Role == nil
	})).Return(testProfile(testUserID, models.RoleUser), nil)

	rr := httptest.NewRecorder()
	f.handler.HandleUpdateUser(rr, updateUserRequest(t, testUserID, map[string]any{}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	f.profileRepo.AssertExpectations(t)
}

func TestHandleUpdateUser_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		body       map[string]any
		repoErr    error
		wantStatus int
	}{
		{name: "negative balance", userID: testUserID, body: map[string]any{"balance": "-1"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "fractional cents", userID: testUserID, body: map[string]any{"balance": "1.001"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown role", userID: testUserID, body: map[string]any{"role": "owner"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "demoting self", userID: testAdminID, body: map[string]any{"role": models.RoleUser}, wantStatus: http.StatusUnprocessableEntity},
		{name: "malformed id", userID: "abc", body: map[string]any{}, wantStatus: http.StatusNotFound},
		{name: "unknown user", userID: testOtherID, body: map[string]any{}, repoErr: repository.ErrRecordNotFound, wantStatus: http.StatusNotFound},
		{name: "balance rejected by store", userID: testUserID, body: map[string]any{"balance": "0"}, repoErr: repository.ErrNegativeBalance, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture(t)

			if tt.repoErr != nil {
				f.profileRepo.On("AdminUpdate", tt.userID, mock.Anything).Return(nil, tt.repoErr)
			}

			rr := httptest.NewRecorder()
			f.handler.HandleUpdateUser(rr, updateUserRequest(t, tt.userID, tt.body))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.repoErr == nil {
				f.profileRepo.AssertNotCalled(t, "AdminUpdate", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHandleListUsers_Pagination(t *testing.T) {
	f := newAdminFixture(t)

	f.profileRepo.On("List", "ada", 10, 10).Return([]models.Profile{*testProfile(testUserID, models.RoleUser)}, 23, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleListUsers(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/users?search=ada&page=2", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	data := responseData(t, rr)
	require.Len(t, data["users"], 1)

	pagination := data["pagination"].(map[string]any)
	require.Equal(t, float64(23), pagination["total"])
	require.Equal(t, float64(2), pagination["page"])
	require.Equal(t, float64(3), pagination["total_pages"])
}

func TestHandleStats(t *testing.T) {
	f := newAdminFixture(t)

	f.statsRepo.On("Platform").Return(&models.PlatformStats{
		TotalUsers:         12,
		TotalBalance:       decimal.RequireFromString("15000.5"),
		TotalInvestments:   decimal.RequireFromString("4000"),
		ActivePins:         3,
		PendingWithdrawals: 2,
	}, nil)
	f.statsRepo.On("Daily", 7).Return([]models.DailyStat{
		{Day: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Signups: 2, InvestmentVolume: decimal.NewFromInt(300)},
	}, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleStats(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	data := responseData(t, rr)
	require.Equal(t, "15000.50", data["total_balance"])
	require.Equal(t, float64(2), data["pending_withdrawals"])

	daily := data["daily"].([]any)
	require.Len(t, daily, 1)
	require.Equal(t, "2025-05-01", daily[0].(map[string]any)["day"])
	require.Equal(t, "300.00", daily[0].(map[string]any)["investment_volume"])
}

func TestHandleRecentActivity(t *testing.T) {
	f := newAdminFixture(t)

	f.activityRepo.On("Latest", 10).Return([]models.ActivityLog{}, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleRecentActivity(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/activity", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	f.activityRepo.AssertExpectations(t)
}
