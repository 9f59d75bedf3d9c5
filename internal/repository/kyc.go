package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cradoe/vestra/internal/models"
	"github.com/jmoiron/sqlx"
)

const kycColumns = `k.id, k.user_id, k.status, k.legal_name, k.ssn_itin, k.dob, k.current_address,
	k.previous_address, k.filing_status, k.agi, k.id_front_url, k.id_back_url, k.tax_document_url,
	k.submitted_at, k.verified_at, k.reviewer_id`

type KycRepository interface {
	Submit(submission *models.KYCSubmission, ip string) error
	LatestByUser(userID string) (*models.KYCSubmission, bool, error)
	List(status string) ([]models.KYCSubmission, error)
	Decide(id string, decision KycDecision) (*models.KYCSubmission, error)
}

type KycDecision struct {
	ReviewerID string
	Status     string
	IP         string
}

type KycRepositoryImpl struct {
	db *sqlx.DB
}

func NewKycRepository(db *sqlx.DB) KycRepository {
	return &KycRepositoryImpl{db: db}
}

// Submit stores a new submission and marks the profile as pending review.
// A user whose latest submission is pending or approved cannot submit again.
func (repo *KycRepositoryImpl) Submit(submission *models.KYCSubmission, ip string) error {
	return runInTx(repo.db, func(ctx context.Context, tx *sqlx.Tx) error {
		var kycStatus string

		err := tx.GetContext(ctx, &kycStatus, `SELECT kyc_status FROM profiles WHERE id = $1 FOR UPDATE`, submission.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		var exists bool

		existsQuery := `SELECT EXISTS(SELECT 1 FROM kyc_submissions WHERE user_id = $1 AND status IN ($2, $3))`

		err = tx.GetContext(ctx, &exists, existsQuery, submission.UserID, models.KycStatusPending, models.KycStatusApproved)
		if err != nil {
			return err
		}
		if exists {
			return ErrKycAlreadySubmitted
		}

		submission.Status = models.KycStatusPending

		query := `
			INSERT INTO kyc_submissions (user_id, status, legal_name, ssn_itin, dob, current_address,
				previous_address, filing_status, agi, id_front_url, id_back_url, tax_document_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, submitted_at`

		err = tx.QueryRowxContext(ctx, query,
			submission.UserID,
			submission.Status,
			submission.LegalName,
			submission.SsnItin,
			submission.Dob,
			submission.CurrentAddress,
			submission.PreviousAddress,
			submission.FilingStatus,
			submission.Agi,
			submission.IDFrontURL,
			submission.IDBackURL,
			submission.TaxDocumentURL,
		).Scan(&submission.ID, &submission.SubmittedAt)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE profiles SET kyc_status = $1, updated_at = NOW() WHERE id = $2`,
			models.KycStatusPending, submission.UserID)
		if err != nil {
			return err
		}

		details := map[string]any{"submission_id": submission.ID}
		return insertActivity(ctx, tx, NewActivityLog(submission.UserID, ActionKycSubmitted, details, ip))
	})
}

func (repo *KycRepositoryImpl) LatestByUser(userID string) (*models.KYCSubmission, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var submission models.KYCSubmission

	query := `
		SELECT ` + kycColumns + `
		FROM kyc_submissions k
		WHERE k.user_id = $1
		ORDER BY k.submitted_at DESC
		LIMIT 1`

	err := repo.db.GetContext(ctx, &submission, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &submission, true, nil
}

func (repo *KycRepositoryImpl) List(status string) ([]models.KYCSubmission, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	submissions := []models.KYCSubmission{}

	query := `
		SELECT ` + kycColumns + `, p.email AS user_email
		FROM kyc_submissions k
		LEFT JOIN profiles p ON p.id = k.user_id
		WHERE $1 = '' OR k.status = $1
		ORDER BY k.submitted_at DESC`

	if err := repo.db.SelectContext(ctx, &submissions, query, status); err != nil {
		return nil, err
	}

	return submissions, nil
}

// Decide records a reviewer's verdict on a pending submission and mirrors it
// onto the owner's profile in one transaction.
func (repo *KycRepositoryImpl) Decide(id string, decision KycDecision) (*models.KYCSubmission, error) {
	if decision.Status != models.KycStatusApproved && decision.Status != models.KycStatusRejected {
		return nil, fmt.Errorf("invalid KYC status %q", decision.Status)
	}

	var submission models.KYCSubmission

	err := runInTx(repo.db, func(ctx context.Context, tx *sqlx.Tx) error {
		query := `SELECT ` + kycColumns + ` FROM kyc_submissions k WHERE k.id = $1 FOR UPDATE`

		if err := tx.GetContext(ctx, &submission, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		if submission.Status != models.KycStatusPending {
			return ErrNotPending
		}

		update := `
			UPDATE kyc_submissions
			SET status = $1, verified_at = NOW(), reviewer_id = $2
			WHERE id = $3
			RETURNING verified_at`

		if err := tx.GetContext(ctx, &submission.VerifiedAt, update, decision.Status, decision.ReviewerID, id); err != nil {
			return err
		}

		submission.Status = decision.Status
		submission.ReviewerID = sql.NullString{String: decision.ReviewerID, Valid: true}

		_, err := tx.ExecContext(ctx, `UPDATE profiles SET kyc_status = $1, updated_at = NOW() WHERE id = $2`,
			decision.Status, submission.UserID)
		if err != nil {
			return err
		}

		details := map[string]any{"admin_id": decision.ReviewerID, "submission_id": submission.ID}
		return insertActivity(ctx, tx, NewActivityLog(submission.UserID, "kyc_"+decision.Status, details, decision.IP))
	})
	if err != nil {
		return nil, err
	}

	return &submission, nil
}
