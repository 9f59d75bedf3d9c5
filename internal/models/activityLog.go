package models

import (
	"database/sql"
	"time"
)

type ActivityLog struct {
	ID        string         `db:"id"`
	UserID    sql.NullString `db:"user_id"`
	Action    string         `db:"action"`
	Details   []byte         `db:"details"`
	IPAddress sql.NullString `db:"ip_address"`
	CreatedAt time.Time      `db:"created_at"`

	UserFullName sql.NullString `db:"full_name"`
	UserEmail    sql.NullString `db:"email"`
}
