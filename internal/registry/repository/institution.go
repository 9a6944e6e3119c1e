package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhulekhchain/bridge/internal/registry/model"
)

// ErrInstitutionNotFound is returned when an institution code or id
// resolves to nothing.
var ErrInstitutionNotFound = errors.New("institution not found")

// ErrInstitutionExists is returned when the login code is already taken.
var ErrInstitutionExists = errors.New("institution code already exists")

// InstitutionRepository persists API principals in PostgreSQL.
type InstitutionRepository struct {
	db *pgxpool.Pool
}

// NewInstitutionRepository creates an InstitutionRepository.
func NewInstitutionRepository(db *pgxpool.Pool) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// Create inserts a new institution.
func (r *InstitutionRepository) Create(ctx context.Context, inst *model.Institution) error {
	inst.ID = uuid.New()
	inst.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO institutions (id, code, name, role, msp_id, secret_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inst.ID, inst.Code, inst.Name, inst.Role, inst.MspID, inst.SecretHash, inst.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrInstitutionExists
		}
		return err
	}
	return nil
}

// GetByCode retrieves an institution by its login code.
func (r *InstitutionRepository) GetByCode(ctx context.Context, code string) (*model.Institution, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, code, name, role, msp_id, secret_hash, created_at
		 FROM institutions WHERE code = $1`, code)
	return scanInstitution(row)
}

// List returns all institutions.
func (r *InstitutionRepository) List(ctx context.Context) ([]*model.Institution, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, code, name, role, msp_id, secret_hash, created_at
		 FROM institutions ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstitution(row pgx.Row) (*model.Institution, error) {
	var inst model.Institution
	err := row.Scan(&inst.ID, &inst.Code, &inst.Name, &inst.Role, &inst.MspID, &inst.SecretHash, &inst.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInstitutionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
