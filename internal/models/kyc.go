package models

import (
	"database/sql"
	"time"
)

type KYCSubmission struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	Status          string         `db:"status"`
	LegalName       string         `db:"legal_name"`
	SsnItin         string         `db:"ssn_itin"`
	Dob             time.Time      `db:"dob"`
	CurrentAddress  string         `db:"current_address"`
	PreviousAddress sql.NullString `db:"previous_address"`
	FilingStatus    sql.NullString `db:"filing_status"`
	Agi             sql.NullString `db:"agi"`
	IDFrontURL      string         `db:"id_front_url"`
	IDBackURL       string         `db:"id_back_url"`
	TaxDocumentURL  sql.NullString `db:"tax_document_url"`
	SubmittedAt     time.Time      `db:"submitted_at"`
	VerifiedAt      sql.NullTime   `db:"verified_at"`
	ReviewerID      sql.NullString `db:"reviewer_id"`

	UserEmail sql.NullString `db:"user_email"`
}
