package model

import (
	"time"

	"github.com/google/uuid"
)

// InstitutionRole gates which lifecycle operations an API principal may
// invoke. The same roles exist as certificate attributes on the
// permissioned ledger side.
type InstitutionRole string

const (
	RoleBank  InstitutionRole = "bank"
	RoleCourt InstitutionRole = "court"
	RoleAdmin InstitutionRole = "admin"
)

// Valid reports whether r is a known role.
func (r InstitutionRole) Valid() bool {
	switch r {
	case RoleBank, RoleCourt, RoleAdmin:
		return true
	}
	return false
}

// Institution is an API principal: a bank, court registry, or state
// administrator that authenticates with a code + secret and acts through
// role-scoped tokens. SecretHash is a bcrypt hash; the plaintext secret
// is never stored.
type Institution struct {
	ID         uuid.UUID       `json:"id"          db:"id"`
	Code       string          `json:"code"        db:"code"`
	Name       string          `json:"name"        db:"name"`
	Role       InstitutionRole `json:"role"        db:"role"`
	MspID      string          `json:"msp_id"      db:"msp_id"`
	SecretHash string          `json:"-"           db:"secret_hash"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
}

// CreateInstitutionRequest is the admin payload for onboarding a principal.
type CreateInstitutionRequest struct {
	Code   string          `json:"code"   binding:"required"`
	Name   string          `json:"name"   binding:"required"`
	Role   InstitutionRole `json:"role"   binding:"required"`
	MspID  string          `json:"msp_id"`
	Secret string          `json:"secret" binding:"required,min=16"`
}

// LoginRequest is the institution credential payload.
type LoginRequest struct {
	Code   string `json:"code"   binding:"required"`
	Secret string `json:"secret" binding:"required"`
}
