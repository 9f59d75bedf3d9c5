package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

const (
	// PinStatusPending is the default for new accounts; no PIN has been issued yet.
	PinStatusPending = "pending"

	// PinStatusActive is the only status that can unlock the withdrawal gate.
	PinStatusActive = "active"

	// PinStatusExpired is set once a PIN is found past its expiry date.
	PinStatusExpired = "expired"

	// PinStatusRevoked is set by an admin. A revoked PIN never verifies, even when the value matches.
	PinStatusRevoked = "revoked"
)

const (
	KycStatusNone     = "none"
	KycStatusPending  = "pending"
	KycStatusApproved = "approved"
	KycStatusRejected = "rejected"
)

type Profile struct {
	ID             string          `db:"id"`
	Email          string          `db:"email"`
	FullName       sql.NullString  `db:"full_name"`
	AvatarURL      sql.NullString  `db:"avatar_url"`
	HashedPassword string          `db:"hashed_password"`
	Role           string          `db:"role"`
	Balance        decimal.Decimal `db:"balance"`
	PinHash        sql.NullString  `db:"pin_hash"`
	PinStatus      string          `db:"pin_status"`
	PinExpiresAt   sql.NullTime    `db:"pin_expires_at"`
	PinLastUsedAt  sql.NullTime    `db:"pin_last_used_at"`
	PinUsageCount  int             `db:"pin_usage_count"`
	KycStatus      string          `db:"kyc_status"`
	LastLogin      sql.NullTime    `db:"last_login"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// DisplayName falls back to the email address when no full name was given.
func (p *Profile) DisplayName() string {
	if p.FullName.Valid && p.FullName.String != "" {
		return p.FullName.String
	}
	return p.Email
}

// HasRole reports whether the profile satisfies the required role.
// Admins satisfy every role; managers satisfy manager.
func (p *Profile) HasRole(required string) bool {
	switch required {
	case RoleAdmin:
		return p.Role == RoleAdmin
	case RoleManager:
		return p.Role == RoleAdmin || p.Role == RoleManager
	case RoleUser:
		return p.Role != ""
	}
	return false
}

func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleManager || role == RoleAdmin
}
