// Every state change on a profile, a PIN, a withdrawal, a KYC submission or an
// investment is written here. Rows are append-only. For admin actions the row
// belongs to the affected user and the admin is recorded in details.admin_id.
package repository

import (
	"context"
	"encoding/json"

	"github.com/cradoe/vestra/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	ActionUserRegistered        = "user_registered"
	ActionUserLogin             = "user_login"
	ActionUserLoginFailed       = "user_login_failed"
	ActionUserLogout            = "user_logout"
	ActionProfileUpdated        = "profile_updated"
	ActionUserUpdated           = "user_updated"
	ActionAdminCreated          = "admin_created"
	ActionPinVerified           = "pin_verified"
	ActionPinVerificationFailed = "pin_verification_failed"
	ActionPinGenerated          = "pin_generated"
	ActionPinRevoked            = "pin_revoked"
	ActionPinSent               = "pin_sent"
	ActionPinChanged            = "pin_changed"
	ActionWithdrawalRequested   = "withdrawal_requested"
	ActionKycSubmitted          = "kyc_submitted"
	ActionInvestmentCreated     = "investment_created"
)

// PinActions are the actions that make up a user's PIN history. Only a
// successful verification or a newly issued PIN ends a run of failures.
var PinActions = []string{
	ActionPinVerified,
	ActionPinVerificationFailed,
	ActionPinGenerated,
}

// LoginActions are the actions that make up a user's sign-in history. An
// admin edit of the account ends a run of failures.
var LoginActions = []string{
	ActionUserLogin,
	ActionUserLoginFailed,
	ActionUserUpdated,
}

type ActivityRepository interface {
	Insert(log *models.ActivityLog) (*models.ActivityLog, error)
	CountConsecutiveActions(userID, action string, history []string, limit int) (int, error)
	Latest(limit int) ([]models.ActivityLog, error)
}

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

// NewActivityLog builds a log entry. A nil details map stores NULL.
func NewActivityLog(userID, action string, details map[string]any, ip string) *models.ActivityLog {
	log := &models.ActivityLog{Action: action}
	log.UserID.String, log.UserID.Valid = userID, userID != ""
	log.IPAddress.String, log.IPAddress.Valid = ip, ip != ""

	if details != nil {
		if js, err := json.Marshal(details); err == nil {
			log.Details = js
		}
	}
	return log
}

func insertActivity(ctx context.Context, q sqlx.QueryerContext, log *models.ActivityLog) error {
	var details any
	if log.Details != nil {
		details = string(log.Details)
	}

	query := `
		INSERT INTO activity_logs (user_id, action, details, ip_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return q.QueryRowxContext(ctx, query, log.UserID, log.Action, details, log.IPAddress).
		Scan(&log.ID, &log.CreatedAt)
}

func (repo *ActivityRepositoryImpl) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := insertActivity(ctx, repo.db, log); err != nil {
		return nil, err
	}

	return log, nil
}

// CountConsecutiveActions walks the user's most recent entries among history
// and counts how many in a row equal action, up to limit.
func (repo *ActivityRepositoryImpl) CountConsecutiveActions(userID, action string, history []string, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var actions []string

	query := `
		SELECT action
		FROM activity_logs
		WHERE user_id = $1 AND action = ANY($2)
		ORDER BY created_at DESC
		LIMIT $3`

	err := repo.db.SelectContext(ctx, &actions, query, userID, pq.Array(history), limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range actions {
		if a != action {
			break
		}
		count++
	}

	return count, nil
}

func (repo *ActivityRepositoryImpl) Latest(limit int) ([]models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	logs := []models.ActivityLog{}

	query := `
		SELECT a.id, a.user_id, a.action, a.details, a.ip_address, a.created_at, p.full_name, p.email
		FROM activity_logs a
		LEFT JOIN profiles p ON p.id = a.user_id
		ORDER BY a.created_at DESC
		LIMIT $1`

	err := repo.db.SelectContext(ctx, &logs, query, limit)
	if err != nil {
		return nil, err
	}

	return logs, nil
}
