package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PropertyStatus is the lifecycle state of the property itself, mirrored
// from the permissioned ledger.
type PropertyStatus string

const (
	PropertyStatusActive PropertyStatus = "ACTIVE"
	// PropertyStatusFrozen blocks new encumbrances; set by court order.
	PropertyStatusFrozen PropertyStatus = "FROZEN"
)

// EncumbranceSummary is the property-level derived flag. It is ENCUMBERED
// iff at least one of the property's encumbrance records is ACTIVE — a
// materialized view the lifecycle coordinator recomputes after every
// transition.
type EncumbranceSummary string

const (
	PropertyClear      EncumbranceSummary = "CLEAR"
	PropertyEncumbered EncumbranceSummary = "ENCUMBERED"
)

// Property is the relational mirror of a land record. The permissioned
// ledger is authoritative; this row is a cache rebuildable from ledger
// replay. Financial fields, where present, are in paisa.
type Property struct {
	PropertyID        string             `json:"property_id"        db:"property_id"`
	StateCode         string             `json:"state_code"         db:"state_code"`
	DistrictCode      string             `json:"district_code"      db:"district_code"`
	TehsilCode        string             `json:"tehsil_code"        db:"tehsil_code"`
	VillageCode       string             `json:"village_code"       db:"village_code"`
	SurveyNumber      string             `json:"survey_number"      db:"survey_number"`
	SubSurveyNumber   string             `json:"sub_survey_number"  db:"sub_survey_number"`
	OwnerName         string             `json:"owner_name"         db:"owner_name"`
	OwnerAadhaarHash  string             `json:"owner_aadhaar_hash" db:"owner_aadhaar_hash"`
	LandUse           string             `json:"land_use"           db:"land_use"`
	Status            PropertyStatus     `json:"status"             db:"status"`
	EncumbranceStatus EncumbranceSummary `json:"encumbrance_status" db:"encumbrance_status"`
	LedgerTxID        string             `json:"ledger_tx_id"       db:"ledger_tx_id"`
	CreatedAt         time.Time          `json:"created_at"         db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"         db:"updated_at"`
}

// propertyIDPattern enforces the revenue-department identifier format:
// {StateCode}-{DistrictCode}-{TehsilCode}-{VillageCode}-{SurveyNo}-{SubSurveyNo},
// e.g. "AP-GNT-TNL-SKM-142-3".
var propertyIDPattern = regexp.MustCompile(`^[A-Z]{2}-[A-Z]{2,5}-[A-Z]{2,5}-[A-Z]{2,5}-[0-9A-Za-z]+-[0-9A-Za-z]+$`)

// ValidatePropertyID checks a property id against the revenue-department
// format. The state code segment must also match the record's stateCode
// column, which callers check separately.
func ValidatePropertyID(propertyID string) error {
	if propertyID == "" {
		return fmt.Errorf("property id cannot be empty")
	}
	if !propertyIDPattern.MatchString(propertyID) {
		return fmt.Errorf("property id %q does not match {State}-{District}-{Tehsil}-{Village}-{Survey}-{SubSurvey}", propertyID)
	}
	return nil
}

// StateCodeOf extracts the state segment of a property id ("AP" from
// "AP-GNT-TNL-SKM-142-3"). Empty string for malformed ids.
func StateCodeOf(propertyID string) string {
	code, _, ok := strings.Cut(propertyID, "-")
	if !ok {
		return ""
	}
	return code
}

// RegisterPropertyRequest is the payload for mirroring a property row.
type RegisterPropertyRequest struct {
	PropertyID   string `json:"property_id"   binding:"required"`
	OwnerName    string `json:"owner_name"    binding:"required"`
	OwnerAadhaar string `json:"owner_aadhaar" binding:"required"`
	LandUse      string `json:"land_use"`
	LedgerTxID   string `json:"ledger_tx_id"`
}
