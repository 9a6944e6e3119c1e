package model

import "time"

// EncumbranceType classifies the legal claim behind an encumbrance.
type EncumbranceType string

const (
	EncumbranceMortgage   EncumbranceType = "MORTGAGE"
	EncumbranceLien       EncumbranceType = "LIEN"
	EncumbranceCourtOrder EncumbranceType = "COURT_ORDER"
)

// Valid reports whether t is a known encumbrance type.
func (t EncumbranceType) Valid() bool {
	switch t {
	case EncumbranceMortgage, EncumbranceLien, EncumbranceCourtOrder:
		return true
	}
	return false
}

// EncumbranceStatus is the lifecycle state of one encumbrance record.
// The only legal transition is ACTIVE → RELEASED; RELEASED is terminal.
type EncumbranceStatus string

const (
	EncumbranceActive   EncumbranceStatus = "ACTIVE"
	EncumbranceReleased EncumbranceStatus = "RELEASED"
)

// EncumbranceRecord mirrors one mortgage/lien/court-order fact from the
// permissioned ledger. Amounts are in paisa; InterestRate is in basis
// points. LedgerTxID and Synced carry enough provenance to re-derive the
// row from ledger replay if the mirror is lost.
type EncumbranceRecord struct {
	EncumbranceID     string            `json:"encumbrance_id"      db:"encumbrance_id"`
	PropertyID        string            `json:"property_id"         db:"property_id"`
	Type              EncumbranceType   `json:"type"                db:"type"`
	Status            EncumbranceStatus `json:"status"              db:"status"`
	InstitutionName   string            `json:"institution_name"    db:"institution_name"`
	BranchCode        string            `json:"branch_code"         db:"branch_code"`
	LoanAccountNumber string            `json:"loan_account_number" db:"loan_account_number"`
	SanctionedAmount  int64             `json:"sanctioned_amount"   db:"sanctioned_amount"`
	OutstandingAmount int64             `json:"outstanding_amount"  db:"outstanding_amount"`
	InterestRate      int64             `json:"interest_rate"       db:"interest_rate"`
	CourtOrderRef     string            `json:"court_order_ref"     db:"court_order_ref"`
	LedgerTxID        string            `json:"ledger_tx_id"        db:"ledger_tx_id"`
	ReleaseTxID       string            `json:"release_tx_id"       db:"release_tx_id"`
	// Synced is false when the row was written while the ledger was
	// unreachable (degraded mode) and still awaits the repair pass.
	Synced     bool       `json:"synced"                db:"synced"`
	CreatedAt  time.Time  `json:"created_at"            db:"created_at"`
	CreatedBy  string     `json:"created_by"            db:"created_by"`
	ReleasedAt *time.Time `json:"released_at,omitempty" db:"released_at"`
}

// AddEncumbranceRequest is the payload for attaching an encumbrance.
type AddEncumbranceRequest struct {
	PropertyID        string          `json:"property_id"         binding:"required"`
	Type              EncumbranceType `json:"type"                binding:"required"`
	InstitutionName   string          `json:"institution_name"    binding:"required"`
	BranchCode        string          `json:"branch_code"`
	LoanAccountNumber string          `json:"loan_account_number"`
	SanctionedAmount  int64           `json:"sanctioned_amount"`
	OutstandingAmount int64           `json:"outstanding_amount"`
	InterestRate      int64           `json:"interest_rate"`
	CourtOrderRef     string          `json:"court_order_ref"`
	// Actor is set by the handler from the institution JWT, never from
	// the client body.
	Actor string `json:"-"`
}
