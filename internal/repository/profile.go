package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cradoe/vestra/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const profileColumns = `id, email, full_name, avatar_url, hashed_password, role, balance, pin_hash,
	pin_status, pin_expires_at, pin_last_used_at, pin_usage_count, kyc_status, last_login,
	created_at, updated_at`

// AdminBalance is the opening balance given to a bootstrapped admin.
var AdminBalance = decimal.NewFromInt(50000)

type ProfileRepository interface {
	Insert(profile *models.Profile) (string, error)
	GetOne(id string) (*models.Profile, bool, error)
	GetByEmail(email string) (*models.Profile, bool, error)
	UpdateLastLogin(id string) error
	UpdateDetails(id string, fullName, avatarURL *string) error
	List(search string, limit, offset int) ([]models.Profile, int, error)
	ListWithPins() ([]models.Profile, error)

	SetPin(id, pinHash string, expiresAt time.Time) error
	ChangePin(id, pinHash string) error
	RevokePin(id string) error
	ExpirePin(id string) error
	RecordPinUse(id string) error

	AdminUpdate(id string, change ProfileChange) (*models.Profile, error)
	PromoteAdmin(email string) (*models.Profile, error)
}

// ProfileChange is an admin edit. Nil fields are left untouched.
type ProfileChange struct {
	Balance *decimal.Decimal
	Role    *string
	AdminID string
	IP      string
}

type ProfileRepositoryImpl struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &ProfileRepositoryImpl{db: db}
}

func (repo *ProfileRepositoryImpl) Insert(profile *models.Profile) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO profiles (email, full_name, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query, profile.Email, profile.FullName, profile.HashedPassword)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateEmail
		}
		return "", err
	}

	return id, nil
}

func (repo *ProfileRepositoryImpl) GetOne(id string) (*models.Profile, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var profile models.Profile

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	err := repo.db.GetContext(ctx, &profile, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &profile, true, nil
}

func (repo *ProfileRepositoryImpl) GetByEmail(email string) (*models.Profile, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var profile models.Profile

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`

	err := repo.db.GetContext(ctx, &profile, query, strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &profile, true, nil
}

func (repo *ProfileRepositoryImpl) UpdateLastLogin(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE profiles SET last_login = NOW() WHERE id = $1`

	_, err := repo.db.ExecContext(ctx, query, id)
	return err
}

func (repo *ProfileRepositoryImpl) UpdateDetails(id string, fullName, avatarURL *string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE profiles
		SET full_name = COALESCE($1, full_name),
			avatar_url = COALESCE($2, avatar_url),
			updated_at = NOW()
		WHERE id = $3`

	_, err := repo.db.ExecContext(ctx, query, fullName, avatarURL, id)
	return err
}

func (repo *ProfileRepositoryImpl) List(search string, limit, offset int) ([]models.Profile, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	profiles := []models.Profile{}
	pattern := "%" + search + "%"

	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE $1 = '' OR email ILIKE $2 OR full_name ILIKE $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	if err := repo.db.SelectContext(ctx, &profiles, query, search, pattern, limit, offset); err != nil {
		return nil, 0, err
	}

	var total int

	countQuery := `SELECT COUNT(*) FROM profiles WHERE $1 = '' OR email ILIKE $2 OR full_name ILIKE $2`

	if err := repo.db.GetContext(ctx, &total, countQuery, search, pattern); err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (repo *ProfileRepositoryImpl) ListWithPins() ([]models.Profile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	profiles := []models.Profile{}

	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE pin_hash IS NOT NULL
		ORDER BY updated_at DESC`

	if err := repo.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, err
	}

	return profiles, nil
}

// SetPin stores a freshly issued PIN hash and resets its usage history.
func (repo *ProfileRepositoryImpl) SetPin(id, pinHash string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE profiles
		SET pin_hash = $1, pin_status = $2, pin_expires_at = $3,
			pin_last_used_at = NULL, pin_usage_count = 0, updated_at = NOW()
		WHERE id = $4`

	return repo.execAffectingOne(ctx, query, pinHash, models.PinStatusActive, expiresAt, id)
}

// ChangePin swaps the hash of an active PIN. Status, expiry and usage history
// stay as they are; ErrRecordNotFound means the PIN is no longer active.
func (repo *ProfileRepositoryImpl) ChangePin(id, pinHash string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE profiles SET pin_hash = $1, updated_at = NOW() WHERE id = $2 AND pin_status = $3`

	return repo.execAffectingOne(ctx, query, pinHash, id, models.PinStatusActive)
}

func (repo *ProfileRepositoryImpl) RevokePin(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE profiles SET pin_status = $1, updated_at = NOW() WHERE id = $2`

	return repo.execAffectingOne(ctx, query, models.PinStatusRevoked, id)
}

func (repo *ProfileRepositoryImpl) ExpirePin(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE profiles SET pin_status = $1, updated_at = NOW() WHERE id = $2 AND pin_status = $3`

	_, err := repo.db.ExecContext(ctx, query, models.PinStatusExpired, id, models.PinStatusActive)
	return err
}

func (repo *ProfileRepositoryImpl) RecordPinUse(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE profiles
		SET pin_usage_count = pin_usage_count + 1, pin_last_used_at = NOW()
		WHERE id = $1`

	_, err := repo.db.ExecContext(ctx, query, id)
	return err
}

func (repo *ProfileRepositoryImpl) execAffectingOne(ctx context.Context, query string, args ...any) error {
	result, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// AdminUpdate applies an admin edit to a profile. A balance change is written
// to the ledger as an adjustment in the same transaction.
func (repo *ProfileRepositoryImpl) AdminUpdate(id string, change ProfileChange) (*models.Profile, error) {
	if change.Balance != nil && change.Balance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	if change.Role != nil && !models.IsValidRole(*change.Role) {
		return nil, fmt.Errorf("invalid role %q", *change.Role)
	}

	var profile models.Profile

	err := runInTx(repo.db, func(ctx context.Context, tx *sqlx.Tx) error {
		query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 FOR UPDATE`

		if err := tx.GetContext(ctx, &profile, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		before := profile.Balance
		details := map[string]any{"admin_id": change.AdminID}
		changes := map[string]any{}

		if change.Balance != nil {
			profile.Balance = *change.Balance
			changes["balance"] = change.Balance.StringFixed(2)
		}
		if change.Role != nil {
			profile.Role = *change.Role
			changes["role"] = *change.Role
		}
		details["changes"] = changes

		update := `UPDATE profiles SET balance = $1, role = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`

		if err := tx.GetContext(ctx, &profile.UpdatedAt, update, profile.Balance, profile.Role, id); err != nil {
			return err
		}

		if !before.Equal(profile.Balance) {
			err := insertTransaction(ctx, tx, &models.Transaction{
				UserID:        id,
				Type:          models.TransactionTypeAdjustment,
				Amount:        profile.Balance.Sub(before),
				BalanceBefore: before,
				BalanceAfter:  profile.Balance,
				Description:   sql.NullString{String: "Balance adjusted by admin", Valid: true},
			})
			if err != nil {
				return err
			}
		}

		return insertActivity(ctx, tx, NewActivityLog(id, ActionUserUpdated, details, change.IP))
	})
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// PromoteAdmin turns an existing profile into an admin with the opening admin balance.
func (repo *ProfileRepositoryImpl) PromoteAdmin(email string) (*models.Profile, error) {
	var profile models.Profile

	err := runInTx(repo.db, func(ctx context.Context, tx *sqlx.Tx) error {
		query := `
			UPDATE profiles
			SET role = $1, balance = $2, pin_status = $3, updated_at = NOW()
			WHERE email = $4
			RETURNING ` + profileColumns

		err := tx.GetContext(ctx, &profile, query,
			models.RoleAdmin,
			AdminBalance,
			models.PinStatusActive,
			strings.ToLower(email),
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		details := map[string]any{"email": profile.Email, "balance": AdminBalance.StringFixed(2)}
		return insertActivity(ctx, tx, NewActivityLog(profile.ID, ActionAdminCreated, details, ""))
	})
	if err != nil {
		return nil, err
	}

	return &profile, nil
}
