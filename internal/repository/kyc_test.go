package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cradoe/vestra/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kycRowColumns = []string{
	"id", "user_id", "status", "legal_name", "ssn_itin", "dob", "current_address", "previous_address",
	"filing_status", "agi", "id_front_url", "id_back_url", "tax_document_url", "submitted_at", "verified_at", "reviewer_id",
}

func expectLockedSubmission(mock sqlmock.Sqlmock, status string) {
	mock.ExpectQuery(`FROM kyc_submissions k WHERE k.id = \$1 FOR UPDATE`).
		WithArgs("kyc-1").
		WillReturnRows(sqlmock.NewRows(kycRowColumns).
			AddRow("kyc-1", "u-1", status, "Ada Lovelace", "123-45-6789", time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
				"1 Main St", nil, nil, nil, "https://cdn/front.jpg", "https://cdn/back.jpg", nil, fixedNow, nil, nil))
}

func TestKycDecide_Approve(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKycRepository(db)

	mock.ExpectBegin()
	expectLockedSubmission(mock, models.KycStatusPending)
	mock.ExpectQuery(`UPDATE kyc_submissions SET status = \$1, verified_at = NOW\(\), reviewer_id = \$2`).
		WithArgs(models.KycStatusApproved, "admin-1", "kyc-1").
		WillReturnRows(sqlmock.NewRows([]string{"verified_at"}).AddRow(fixedNow))
	mock.ExpectExec(`UPDATE profiles SET kyc_status = \$1`).
		WithArgs(models.KycStatusApproved, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock, "u-1", "kyc_approved")
	mock.ExpectCommit()

	submission, err := repo.Decide("kyc-1", KycDecision{ReviewerID: "admin-1", Status: models.KycStatusApproved})
	require.NoError(t, err)

	assert.Equal(t, models.KycStatusApproved, submission.Status)
	assert.Equal(t, "admin-1", submission.ReviewerID.String)
	assert.True(t, submission.VerifiedAt.Valid)
}

func TestKycDecide_ProfileUpdateFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKycRepository(db)

	mock.ExpectBegin()
	expectLockedSubmission(mock, models.KycStatusPending)
	mock.ExpectQuery(`UPDATE kyc_submissions`).
		WithArgs(models.KycStatusRejected, "admin-1", "kyc-1").
		WillReturnRows(sqlmock.NewRows([]string{"verified_at"}).AddRow(fixedNow))
	mock.ExpectExec(`UPDATE profiles SET kyc_status = \$1`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	submission, err := repo.Decide("kyc-1", KycDecision{ReviewerID: "admin-1", Status: models.KycStatusRejected})
	assert.EqualError(t, err, "deadlock detected")
	assert.Nil(t, submission)
}

func TestKycDecide_NotPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKycRepository(db)

	mock.ExpectBegin()
	expectLockedSubmission(mock, models.KycStatusApproved)
	mock.ExpectRollback()

	_, err := repo.Decide("kyc-1", KycDecision{ReviewerID: "admin-1", Status: models.KycStatusRejected})
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestKycDecide_InvalidStatus(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewKycRepository(db)

	_, err := repo.Decide("kyc-1", KycDecision{ReviewerID: "admin-1", Status: models.KycStatusPending})
	assert.Error(t, err)
}

func TestKycSubmit(t *testing.T) {
	submission := func() *models.KYCSubmission {
		return &models.KYCSubmission{
			UserID:         "u-1",
			LegalName:      "Ada Lovelace",
			SsnItin:        "123-45-6789",
			Dob:            time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
			CurrentAddress: "1 Main St",
			IDFrontURL:     "https://cdn/front.jpg",
			IDBackURL:      "https://cdn/back.jpg",
		}
	}

	t.Run("marks profile pending", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKycRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT kyc_status FROM profiles WHERE id = \$1 FOR UPDATE`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"kyc_status"}).AddRow(models.KycStatusRejected))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("u-1", models.KycStatusPending, models.KycStatusApproved).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO kyc_submissions`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "submitted_at"}).AddRow("kyc-2", fixedNow))
		mock.ExpectExec(`UPDATE profiles SET kyc_status = \$1`).
			WithArgs(models.KycStatusPending, "u-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectActivity(mock, "u-1", ActionKycSubmitted)
		mock.ExpectCommit()

		s := submission()
		require.NoError(t, repo.Submit(s, "10.0.0.1"))
		assert.Equal(t, "kyc-2", s.ID)
		assert.Equal(t, models.KycStatusPending, s.Status)
	})

	t.Run("already submitted", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKycRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT kyc_status FROM profiles WHERE id = \$1 FOR UPDATE`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"kyc_status"}).AddRow(models.KycStatusPending))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Submit(submission(), ""), ErrKycAlreadySubmitted)
	})
}
