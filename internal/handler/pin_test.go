package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cradoe/vestra/internal/mocks"
	"github.com/cradoe/vestra/internal/models"
	"github.com/cradoe/vestra/internal/pin"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type pinFixture struct {
	env          *testEnv
	profileRepo  *mocks.MockProfileRepo
	activityRepo *mocks.MockActivityRepo
	mailer       *mocks.MockMailer
	handler      *PinHandler
}

func newPinFixture(t *testing.T) *pinFixture {
	f := &pinFixture{
		env:          newTestEnv(t),
		profileRepo:  new(mocks.MockProfileRepo),
		activityRepo: new(mocks.MockActivityRepo),
		mailer:       new(mocks.MockMailer),
	}

	f.handler = NewPinHandler(&PinHandler{
		ProfileRepo:  f.profileRepo,
		ActivityRepo: f.activityRepo,
		Gate:         f.env.Gate,
		Cache:        f.env.Store,
		ErrHandler:   f.env.ErrHandler,
		Helper:       f.env.Helper,
		Mailer:       f.mailer,
	})

	return f
}

func (f *pinFixture) priorFailures(n int) {
	f.activityRepo.On("CountConsecutiveActions", testUserID, repository.ActionPinVerificationFailed, repository.PinActions, pin.MaxFailedAttempts).Return(n, nil)
}

// withPin gives the profile an active PIN hashed at minimum cost.
func withPin(t *testing.T, p *models.Profile, plain string, expiresAt time.Time) *models.Profile {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)

	p.PinStatus = models.PinStatusActive
	p.PinHash.String, p.PinHash.Valid = string(hash), true
	p.PinExpiresAt.Time, p.PinExpiresAt.Valid = expiresAt, true
	return p
}

func verifyRequest(t *testing.T, p *models.Profile, value string) *http.Request {
	return asProfile(jsonRequest(t, http.MethodPost, "/v1/pin/verify", map[string]string{"pin": value}), p)
}

func TestHandleVerifyPin_Success(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

	f.priorFailures(2)
	f.profileRepo.On("RecordPinUse", testUserID).Return(nil)
	f.activityRepo.On("Insert", mocks.ActionIs(repository.ActionPinVerified)).Return(&models.ActivityLog{}, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleVerifyPin(rr, verifyRequest(t, profile, "4821"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, true, responseData(t, rr)["verified"])

	open, _, err := f.env.Gate.Status(context.Background(), testUserID)
	require.NoError(t, err)
	require.True(t, open)

	f.profileRepo.AssertExpectations(t)
	f.activityRepo.AssertExpectations(t)
}

func TestHandleVerifyPin_Failures(t *testing.T) {
	future := time.Now().AddDate(0, 1, 0)

	tests := []struct {
		name          string
		profile       func(t *testing.T) *models.Profile
		input         string
		priorFailures int
		wantStatus    int
		wantReason    string
		wantRemaining float64
		wantExpire    bool
	}{
		{
			name:          "wrong pin",
			profile:       func(t *testing.T) *models.Profile { return withPin(t, testProfile(testUserID, models.RoleUser), "4821", future) },
			input:         "1234",
			priorFailures: 0,
			wantStatus:    http.StatusUnprocessableEntity,
			wantReason:    pin.ErrIncorrect.Error(),
			wantRemaining: 4,
		},
		{
			name:          "malformed pin",
			profile:       func(t *testing.T) *models.Profile { return withPin(t, testProfile(testUserID, models.RoleUser), "4821", future) },
			input:         "123",
			priorFailures: 1,
			wantStatus:    http.StatusUnprocessableEntity,
			wantReason:    pin.ErrInvalidFormat.Error(),
			wantRemaining: 3,
		},
		{
			name:          "no pin issued",
			profile:       func(t *testing.T) *models.Profile { return testProfile(testUserID, models.RoleUser) },
			input:         "4821",
			priorFailures: 0,
			wantStatus:    http.StatusUnprocessableEntity,
			wantReason:    pin.ErrNotActive.Error(),
			wantRemaining: 4,
		},
		{
			name: "expired pin",
			profile: func(t *testing.T) *models.Profile {
				return withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().Add(-time.Hour))
			},
			input:         "4821",
			priorFailures: 0,
			wantStatus:    http.StatusUnprocessableEntity,
			wantReason:    pin.ErrExpired.Error(),
			wantRemaining: 4,
			wantExpire:    true,
		},
		{
			name:          "fifth failure locks",
			profile:       func(t *testing.T) *models.Profile { return withPin(t, testProfile(testUserID, models.RoleUser), "4821", future) },
			input:         "0000",
			priorFailures: 4,
			wantStatus:    http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPinFixture(t)

			f.priorFailures(tt.priorFailures)
			f.activityRepo.On("Insert", mocks.ActionIs(repository.ActionPinVerificationFailed)).Return(&models.ActivityLog{}, nil).Once()
			if tt.wantExpire {
				f.profileRepo.On("ExpirePin", testUserID).Return(nil).Once()
			}

			rr := httptest.NewRecorder()
			f.handler.HandleVerifyPin(rr, verifyRequest(t, tt.profile(t), tt.input))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())

			if tt.wantStatus == http.StatusUnprocessableEntity {
				details := decodeResponse(t, rr)["error"].(map[string]any)
				require.Equal(t, tt.wantReason, details["reason"])
				require.Equal(t, tt.wantRemaining, details["attempts_remaining"])
			}

			open, _, err := f.env.Gate.Status(context.Background(), testUserID)
			require.NoError(t, err)
			require.False(t, open)

			f.activityRepo.AssertExpectations(t)
			f.profileRepo.AssertExpectations(t)
			f.profileRepo.AssertNotCalled(t, "RecordPinUse", mock.Anything)
		})
	}
}

func TestHandleVerifyPin_LockedRejectsCorrectPin(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

	f.priorFailures(pin.MaxFailedAttempts)

	rr := httptest.NewRecorder()
	f.handler.HandleVerifyPin(rr, verifyRequest(t, profile, "4821"))

	require.Equal(t, http.StatusForbidden, rr.Code)
	f.activityRepo.AssertNotCalled(t, "Insert", mock.Anything)
	require.False(t, f.env.Redis.Exists("pin-attempt:"+testUserID), "the attempt lock is released")
}

func TestHandleVerifyPin_HistoryUnavailable(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

	f.activityRepo.On("CountConsecutiveActions", testUserID, repository.ActionPinVerificationFailed, repository.PinActions, pin.MaxFailedAttempts).
		Return(0, errors.New("connection reset by peer"))

	rr := httptest.NewRecorder()
	f.handler.HandleVerifyPin(rr, verifyRequest(t, profile, "4821"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	f.profileRepo.AssertNotCalled(t, "RecordPinUse", mock.Anything)

	open, _, err := f.env.Gate.Status(context.Background(), testUserID)
	require.NoError(t, err)
	require.False(t, open)
}

func TestHandleVerifyPin_AttemptInProgress(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

	held, err := f.env.Gate.Acquire(context.Background(), testUserID)
	require.NoError(t, err)
	require.True(t, held)

	rr := httptest.NewRecorder()
	f.handler.HandleVerifyPin(rr, verifyRequest(t, profile, "0000"))

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	f.activityRepo.AssertNotCalled(t, "CountConsecutiveActions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.activityRepo.AssertNotCalled(t, "Insert", mock.Anything)
}

func TestHandleVerifyPin_LockStoreUnavailable(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))
	f.env.Redis.Close()

	rr := httptest.NewRecorder()
	f.handler.HandleVerifyPin(rr, verifyRequest(t, profile, "4821"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	f.activityRepo.AssertNotCalled(t, "CountConsecutiveActions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleVerificationStatus(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

	f.priorFailures(0)

	_, err := f.env.Gate.Open(context.Background(), testUserID)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	f.handler.HandleVerificationStatus(rr, asProfile(httptest.NewRequest(http.MethodGet, "/v1/pin/status", nil), profile))

	require.Equal(t, http.StatusOK, rr.Code)
	data := responseData(t, rr)
	require.Equal(t, true, data["verified"])
	require.Equal(t, false, data["locked"])
	require.Equal(t, models.PinStatusActive, data["pin_status"])
	require.NotNil(t, data["expires_at"])

	t.Run("history unavailable", func(t *testing.T) {
		f := newPinFixture(t)
		f.activityRepo.On("CountConsecutiveActions", testUserID, repository.ActionPinVerificationFailed, repository.PinActions, pin.MaxFailedAttempts).
			Return(0, errors.New("connection reset by peer"))

		rr := httptest.NewRecorder()
		f.handler.HandleVerificationStatus(rr, asProfile(httptest.NewRequest(http.MethodGet, "/v1/pin/status", nil), profile))

		require.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func generateRequest(t *testing.T, userID string) *http.Request {
	req := jsonRequest(t, http.MethodPost, "/v1/admin/pins/"+userID, nil)
	req.SetPathValue("id", userID)
	return asProfile(req, testProfile(testAdminID, models.RoleAdmin))
}

func TestHandleGeneratePin(t *testing.T) {
	f := newPinFixture(t)

	_, err := f.env.Gate.Open(context.Background(), testUserID)
	require.NoError(t, err)

	f.profileRepo.On("GetOne", testUserID).Return(testProfile(testUserID, models.RoleUser), true, nil)
	f.profileRepo.On("SetPin", testUserID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	f.activityRepo.On("Insert", mock.MatchedBy(func(log *models.ActivityLog) bool {
		return log.Action == repository.ActionPinGenerated && log.UserID.String == testUserID
	})).Return(&models.ActivityLog{}, nil)
	f.mailer.On("Send", "ada@example.com", mock.Anything, []string{"pin-issued.tmpl"}).Return(nil)

	rr := httptest.NewRecorder()
	f.handler.HandleGeneratePin(rr, generateRequest(t, testUserID))
	f.env.WG.Wait()

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	data := responseData(t, rr)
	require.True(t, pin.ValidFormat(data["pin"].(string)))
	require.Equal(t, testUserID, data["user_id"])

	open, _, err := f.env.Gate.Status(context.Background(), testUserID)
	require.NoError(t, err)
	require.False(t, open, "a new PIN closes any open verification window")

	f.profileRepo.AssertExpectations(t)
	f.activityRepo.AssertExpectations(t)
	f.mailer.AssertExpectations(t)

	t.Run("second request inside the cooldown", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.handler.HandleGeneratePin(rr, generateRequest(t, testUserID))

		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		require.Equal(t, "5", rr.Header().Get("Retry-After"))
		f.profileRepo.AssertNumberOfCalls(t, "GetOne", 1)
	})
}

func TestHandleGeneratePin_UnknownUser(t *testing.T) {
	f := newPinFixture(t)

	f.profileRepo.On("GetOne", testOtherID).Return(nil, false, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleGeneratePin(rr, generateRequest(t, testOtherID))

	require.Equal(t, http.StatusNotFound, rr.Code)
	f.profileRepo.AssertNotCalled(t, "SetPin", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleGeneratePin_MalformedID(t *testing.T) {
	f := newPinFixture(t)

	rr := httptest.NewRecorder()
	f.handler.HandleGeneratePin(rr, generateRequest(t, "not-a-uuid"))

	require.Equal(t, http.StatusNotFound, rr.Code)
	f.profileRepo.AssertNotCalled(t, "GetOne", mock.Anything)
}

func TestHandleRevokePin(t *testing.T) {
	f := newPinFixture(t)

	_, err := f.env.Gate.Open(context.Background(), testUserID)
	require.NoError(t, err)

	f.profileRepo.On("RevokePin", testUserID).Return(nil)
	f.activityRepo.On("Insert", mocks.ActionIs(repository.ActionPinRevoked)).Return(&models.ActivityLog{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/admin/pins/"+testUserID, nil)
	req.SetPathValue("id", testUserID)
	req = asProfile(req, testProfile(testAdminID, models.RoleAdmin))

	rr := httptest.NewRecorder()
	f.handler.HandleRevokePin(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	open, _, err := f.env.Gate.Status(context.Background(), testUserID)
	require.NoError(t, err)
	require.False(t, open)

	f.profileRepo.AssertExpectations(t)
}

func TestHandleNotifyPin_RequiresActivePin(t *testing.T) {
	f := newPinFixture(t)

	f.profileRepo.On("GetOne", testUserID).Return(testProfile(testUserID, models.RoleUser), true, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/pins/"+testUserID+"/notify", nil)
	req.SetPathValue("id", testUserID)
	req = asProfile(req, testProfile(testAdminID, models.RoleAdmin))

	rr := httptest.NewRecorder()
	f.handler.HandleNotifyPin(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func changePinRequest(t *testing.T, p *models.Profile, current, next, confirm string) *http.Request {
	body := map[string]string{"current_pin": current, "new_pin": next, "confirm_pin": confirm}
	return asProfile(jsonRequest(t, http.MethodPut, "/v1/profile/pin", body), p)
}

func TestHandleChangePin(t *testing.T) {
	f := newPinFixture(t)
	expiresAt := time.Now().AddDate(0, 3, 0).UTC().Truncate(time.Second)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", expiresAt)

	_, err := f.env.Gate.Open(context.Background(), testUserID)
	require.NoError(t, err)

	f.priorFailures(2)
	f.profileRepo.On("ChangePin", testUserID, mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("2468")) == nil
	})).Return(nil)
	f.activityRepo.On("Insert", mocks.ActionIs(repository.ActionPinChanged)).Return(&models.ActivityLog{}, nil)

	rr := httptest.NewRecorder()
	f.handler.HandleChangePin(rr, changePinRequest(t, profile, "4821", "2468", "2468"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	data := responseData(t, rr)
	require.Equal(t, models.PinStatusActive, data["pin_status"])
	require.Equal(t, expiresAt.Format(time.RFC3339), data["pin_expires_at"], "expiry carries over")

	open, _, err := f.env.Gate.Status(context.Background(), testUserID)
	require.NoError(t, err)
	require.False(t, open)
	require.False(t, f.env.Redis.Exists("pin-attempt:"+testUserID))

	f.profileRepo.AssertExpectations(t)
	f.activityRepo.AssertExpectations(t)
	f.profileRepo.AssertNotCalled(t, "SetPin", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleChangePin_Refused(t *testing.T) {
	future := time.Now().AddDate(0, 1, 0)

	tests := []struct {
		name          string
		profile       func(t *testing.T) *models.Profile
		current       string
		priorFailures int
		wantStatus    int
		wantReason    string
		wantExpire    bool
	}{
		{
			name: "revoked pin",
			profile: func(t *testing.T) *models.Profile {
				p := withPin(t, testProfile(testUserID, models.RoleUser), "4821", future)
				p.PinStatus = models.PinStatusRevoked
				return p
			},
			current:    "4821",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: pin.ErrNotActive.Error(),
		},
		{
			name: "expired pin",
			profile: func(t *testing.T) *models.Profile {
				return withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().Add(-time.Hour))
			},
			current:    "4821",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: pin.ErrExpired.Error(),
			wantExpire: true,
		},
		{
			name:       "no pin issued",
			profile:    func(t *testing.T) *models.Profile { return testProfile(testUserID, models.RoleUser) },
			current:    "4821",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: pin.ErrNotActive.Error(),
		},
		{
			name:       "wrong current pin",
			profile:    func(t *testing.T) *models.Profile { return withPin(t, testProfile(testUserID, models.RoleUser), "4821", future) },
			current:    "1111",
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: pin.ErrIncorrect.Error(),
		},
		{
			name:          "fifth failure locks",
			profile:       func(t *testing.T) *models.Profile { return withPin(t, testProfile(testUserID, models.RoleUser), "4821", future) },
			current:       "1111",
			priorFailures: 4,
			wantStatus:    http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPinFixture(t)

			f.priorFailures(tt.priorFailures)
			f.activityRepo.On("Insert", mocks.ActionIs(repository.ActionPinVerificationFailed)).Return(&models.ActivityLog{}, nil).Once()
			if tt.wantExpire {
				f.profileRepo.On("ExpirePin", testUserID).Return(nil).Once()
			}

			rr := httptest.NewRecorder()
			f.handler.HandleChangePin(rr, changePinRequest(t, tt.profile(t), tt.current, "1357", "1357"))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())

			if tt.wantReason != "" {
				details := decodeResponse(t, rr)["error"].(map[string]any)
				require.Equal(t, tt.wantReason, details["reason"])
			}

			f.activityRepo.AssertExpectations(t)
			f.profileRepo.AssertExpectations(t)
			f.profileRepo.AssertNotCalled(t, "ChangePin", mock.Anything, mock.Anything)
			f.profileRepo.AssertNotCalled(t, "SetPin", mock.Anything, mock.Anything, mock.Anything)
			f.activityRepo.AssertNotCalled(t, "Insert", mocks.ActionIs(repository.ActionPinChanged))
		})
	}
}

func TestHandleChangePin_Locked(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

	f.priorFailures(pin.MaxFailedAttempts)

	rr := httptest.NewRecorder()
	f.handler.HandleChangePin(rr, changePinRequest(t, profile, "4821", "2468", "2468"))

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "Too many failed attempts")
	f.activityRepo.AssertNotCalled(t, "Insert", mock.Anything)
	f.profileRepo.AssertNotCalled(t, "ChangePin", mock.Anything, mock.Anything)
}

func TestHandleChangePin_RevokedMeanwhile(t *testing.T) {
	f := newPinFixture(t)
	profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

	f.priorFailures(0)
	f.profileRepo.On("ChangePin", testUserID, mock.AnythingOfType("string")).Return(repository.ErrRecordNotFound)

	rr := httptest.NewRecorder()
	f.handler.HandleChangePin(rr, changePinRequest(t, profile, "4821", "2468", "2468"))

	require.Equal(t, http.StatusForbidden, rr.Code)
	f.activityRepo.AssertNotCalled(t, "Insert", mock.Anything)
}

func TestHandleChangePin_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		current string
		newPin  string
		confirm string
	}{
		{name: "missing current pin", current: "", newPin: "2468", confirm: "2468"},
		{name: "too short", current: "4821", newPin: "246", confirm: "246"},
		{name: "letters", current: "4821", newPin: "24a8", confirm: "24a8"},
		{name: "mismatch", current: "4821", newPin: "2468", confirm: "2469"},
		{name: "unchanged", current: "4821", newPin: "4821", confirm: "4821"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPinFixture(t)
			profile := withPin(t, testProfile(testUserID, models.RoleUser), "4821", time.Now().AddDate(0, 1, 0))

			rr := httptest.NewRecorder()
			f.handler.HandleChangePin(rr, changePinRequest(t, profile, tt.current, tt.newPin, tt.confirm))

			require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			f.activityRepo.AssertNotCalled(t, "CountConsecutiveActions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.profileRepo.AssertNotCalled(t, "ChangePin", mock.Anything, mock.Anything)
		})
	}
}
