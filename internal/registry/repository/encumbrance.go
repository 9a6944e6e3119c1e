package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhulekhchain/bridge/internal/registry/model"
)

// ErrEncumbranceNotFound is returned when an encumbrance id resolves to
// nothing.
var ErrEncumbranceNotFound = errors.New("encumbrance not found")

// ErrStatusConflict is returned by UpdateStatusIf when the row's current
// status no longer matches the expected value — a concurrent transition
// won the race.
var ErrStatusConflict = errors.New("encumbrance status changed concurrently")

const encumbranceColumns = `encumbrance_id, property_id, type, status, institution_name,
	branch_code, loan_account_number, sanctioned_amount, outstanding_amount, interest_rate,
	court_order_ref, ledger_tx_id, release_tx_id, synced, created_at, created_by, released_at`

// EncumbranceRepository persists encumbrance mirror rows in PostgreSQL.
type EncumbranceRepository struct {
	db *pgxpool.Pool
}

// NewEncumbranceRepository creates an EncumbranceRepository.
func NewEncumbranceRepository(db *pgxpool.Pool) *EncumbranceRepository {
	return &EncumbranceRepository{db: db}
}

// Create inserts a new encumbrance row.
func (r *EncumbranceRepository) Create(ctx context.Context, e *model.EncumbranceRecord) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO encumbrances (` + encumbranceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.Exec(ctx, query,
		e.EncumbranceID, e.PropertyID, e.Type, e.Status, e.InstitutionName,
		e.BranchCode, e.LoanAccountNumber, e.SanctionedAmount, e.OutstandingAmount, e.InterestRate,
		e.CourtOrderRef, e.LedgerTxID, e.ReleaseTxID, e.Synced, e.CreatedAt, e.CreatedBy, e.ReleasedAt,
	)
	return err
}

// GetByID retrieves an encumbrance by id.
func (r *EncumbranceRepository) GetByID(ctx context.Context, encumbranceID string) (*model.EncumbranceRecord, error) {
	query := `SELECT ` + encumbranceColumns + ` FROM encumbrances WHERE encumbrance_id = $1`
	row := r.db.QueryRow(ctx, query, encumbranceID)
	return scanEncumbrance(row)
}

// ListByProperty returns all encumbrances for a property, newest first.
func (r *EncumbranceRepository) ListByProperty(ctx context.Context, propertyID string) ([]*model.EncumbranceRecord, error) {
	query := `SELECT ` + encumbranceColumns + ` FROM encumbrances
		WHERE property_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.EncumbranceRecord
	for rows.Next() {
		e, err := scanEncumbrance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListUnsynced returns rows written in degraded mode that still await the
// ledger repair pass.
func (r *EncumbranceRepository) ListUnsynced(ctx context.Context, limit int) ([]*model.EncumbranceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + encumbranceColumns + ` FROM encumbrances
		WHERE synced = false
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.EncumbranceRecord
	for rows.Next() {
		e, err := scanEncumbrance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateStatusIf flips an encumbrance from expected to next in one
// conditional update. This is the per-entity serialization point: of two
// concurrent releases, exactly one sees RowsAffected == 1.
func (r *EncumbranceRepository) UpdateStatusIf(ctx context.Context, encumbranceID string, expected, next model.EncumbranceStatus, releaseTxID string, releasedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE encumbrances
		 SET status = $3, release_tx_id = $4, released_at = $5
		 WHERE encumbrance_id = $1 AND status = $2`,
		encumbranceID, expected, next, releaseTxID, releasedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkSynced records that the ledger repair pass caught the row up.
func (r *EncumbranceRepository) MarkSynced(ctx context.Context, encumbranceID, ledgerTxID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE encumbrances SET synced = true, ledger_tx_id = $2 WHERE encumbrance_id = $1`,
		encumbranceID, ledgerTxID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEncumbranceNotFound
	}
	return nil
}

// CountActiveByProperty counts ACTIVE encumbrances from the current record
// set. The lifecycle coordinator recomputes the property flag from this,
// never from a cached counter.
func (r *EncumbranceRepository) CountActiveByProperty(ctx context.Context, propertyID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM encumbrances WHERE property_id = $1 AND status = $2`,
		propertyID, model.EncumbranceActive,
	).Scan(&count)
	return count, err
}

func scanEncumbrance(row pgx.Row) (*model.EncumbranceRecord, error) {
	var e model.EncumbranceRecord
	err := row.Scan(
		&e.EncumbranceID, &e.PropertyID, &e.Type, &e.Status, &e.InstitutionName,
		&e.BranchCode, &e.LoanAccountNumber, &e.SanctionedAmount, &e.OutstandingAmount, &e.InterestRate,
		&e.CourtOrderRef, &e.LedgerTxID, &e.ReleaseTxID, &e.Synced, &e.CreatedAt, &e.CreatedBy, &e.ReleasedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEncumbranceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
