package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhulekhchain/bridge/internal/registry/model"
)

// ErrPropertyNotFound is returned when a property id resolves to nothing.
var ErrPropertyNotFound = errors.New("property not found")

const propertyColumns = `property_id, state_code, district_code, tehsil_code, village_code,
	survey_number, sub_survey_number, owner_name, owner_aadhaar_hash, land_use,
	status, encumbrance_status, ledger_tx_id, created_at, updated_at`

// PropertyRepository persists the property mirror rows in PostgreSQL.
type PropertyRepository struct {
	db *pgxpool.Pool
}

// NewPropertyRepository creates a PropertyRepository.
func NewPropertyRepository(db *pgxpool.Pool) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// Upsert inserts or refreshes a property row. The mirror is rebuildable
// from ledger replay, so a repeated registration simply overwrites the
// mutable columns.
func (r *PropertyRepository) Upsert(ctx context.Context, p *model.Property) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO properties (` + propertyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (property_id) DO UPDATE SET
			owner_name = EXCLUDED.owner_name,
			owner_aadhaar_hash = EXCLUDED.owner_aadhaar_hash,
			land_use = EXCLUDED.land_use,
			status = EXCLUDED.status,
			ledger_tx_id = EXCLUDED.ledger_tx_id,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		p.PropertyID, p.StateCode, p.DistrictCode, p.TehsilCode, p.VillageCode,
		p.SurveyNumber, p.SubSurveyNumber, p.OwnerName, p.OwnerAadhaarHash, p.LandUse,
		p.Status, p.EncumbranceStatus, p.LedgerTxID, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetByID retrieves a property by its revenue-department id.
func (r *PropertyRepository) GetByID(ctx context.Context, propertyID string) (*model.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE property_id = $1`
	row := r.db.QueryRow(ctx, query, propertyID)
	return scanProperty(row)
}

// ListByState returns properties for a state, newest first.
func (r *PropertyRepository) ListByState(ctx context.Context, stateCode string, limit, offset int) ([]*model.Property, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + propertyColumns + ` FROM properties
		WHERE state_code = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, stateCode, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []*model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// SetEncumbranceStatus updates the derived property-level flag.
func (r *PropertyRepository) SetEncumbranceStatus(ctx context.Context, propertyID string, status model.EncumbranceSummary) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE properties SET encumbrance_status = $2, updated_at = $3 WHERE property_id = $1`,
		propertyID, status, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

// SetStatus updates the property lifecycle status (e.g. a court freeze).
func (r *PropertyRepository) SetStatus(ctx context.Context, propertyID string, status model.PropertyStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE properties SET status = $2, updated_at = $3 WHERE property_id = $1`,
		propertyID, status, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

func scanProperty(row pgx.Row) (*model.Property, error) {
	var p model.Property
	err := row.Scan(
		&p.PropertyID, &p.StateCode, &p.DistrictCode, &p.TehsilCode, &p.VillageCode,
		&p.SurveyNumber, &p.SubSurveyNumber, &p.OwnerName, &p.OwnerAadhaarHash, &p.LandUse,
		&p.Status, &p.EncumbranceStatus, &p.LedgerTxID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
