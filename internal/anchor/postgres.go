package anchor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `anchor_id, state_code, channel_id, block_start, block_end,
	state_root, tx_count, chain_tx_id, confirmed_round, anchor_seq, verified, anchored_at`

// PostgresStore persists anchor records to PostgreSQL.
// It implements the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Persist implements Store.
func (s *PostgresStore) Persist(ctx context.Context, rec *Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO anchors (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.AnchorID, rec.StateCode, rec.ChannelID, rec.BlockRange.Start, rec.BlockRange.End,
		rec.StateRoot, rec.TxCount, rec.ChainTxID, rec.ConfirmedRound, rec.AnchorSeq,
		rec.Verified, rec.AnchoredAt,
	)
	if err != nil {
		return fmt.Errorf("insert anchor %s: %w", rec.AnchorID, err)
	}
	return nil
}

// GetByID implements Store.
func (s *PostgresStore) GetByID(ctx context.Context, anchorID string) (*Record, error) {
	return s.scanOne(ctx,
		`SELECT `+recordColumns+` FROM anchors WHERE anchor_id = $1`, anchorID)
}

// LatestByState implements Store.
func (s *PostgresStore) LatestByState(ctx context.Context, stateCode string) (*Record, error) {
	return s.scanOne(ctx,
		`SELECT `+recordColumns+` FROM anchors
		 WHERE state_code = $1 ORDER BY anchored_at DESC LIMIT 1`, stateCode)
}

// FindByRange implements Store.
func (s *PostgresStore) FindByRange(ctx context.Context, stateCode string, br BlockRange) (*Record, error) {
	return s.scanOne(ctx,
		`SELECT `+recordColumns+` FROM anchors
		 WHERE state_code = $1 AND block_start = $2 AND block_end = $3`,
		stateCode, br.Start, br.End)
}

// ListByState implements Store.
func (s *PostgresStore) ListByState(ctx context.Context, stateCode string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM anchors
		 WHERE state_code = $1 ORDER BY anchored_at DESC LIMIT $2`, stateCode, limit)
	if err != nil {
		return nil, fmt.Errorf("list anchors for %s: %w", stateCode, err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkVerified implements Store. The sole permitted mutation of a record.
func (s *PostgresStore) MarkVerified(ctx context.Context, anchorID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE anchors SET verified = TRUE WHERE anchor_id = $1`, anchorID)
	if err != nil {
		return fmt.Errorf("mark anchor %s verified: %w", anchorID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, args ...any) (*Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query anchor: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRecord(rows)
}

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	if err := row.Scan(
		&rec.AnchorID, &rec.StateCode, &rec.ChannelID, &rec.BlockRange.Start, &rec.BlockRange.End,
		&rec.StateRoot, &rec.TxCount, &rec.ChainTxID, &rec.ConfirmedRound, &rec.AnchorSeq,
		&rec.Verified, &rec.AnchoredAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan anchor row: %w", err)
	}
	return rec, nil
}
