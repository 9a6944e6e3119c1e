package auditchain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/hashchain"
)

// PostgresLedger persists the audit chain to PostgreSQL.
// It implements the Ledger interface.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a PostgresLedger backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

// streamLockKey derives a stable advisory lock key for a property stream.
// Appends to different streams never contend; appends to the same stream
// are serialized.
func streamLockKey(propertyID string) int64 {
	sum := sha256.Sum256([]byte(propertyID))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Append implements Ledger.
// It acquires a per-stream PostgreSQL advisory lock, reads the stream tail,
// computes the new entry hash, and inserts it — all within one transaction.
func (l *PostgresLedger) Append(ctx context.Context, propertyID, action, actor string, payload any) (*Entry, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	dataHash := hashchain.Digest(payloadJSON)

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent appends to the same stream with a
	// transaction-scoped advisory lock. Released on commit or rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", streamLockKey(propertyID)); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	// Read the current tail of the stream. An empty stream chains from
	// the genesis constant.
	prevSeq := -1
	prevHash := hashchain.GenesisHash
	err = tx.QueryRow(ctx,
		"SELECT seq, hash FROM audit_chain WHERE property_id = $1 ORDER BY seq DESC LIMIT 1",
		propertyID,
	).Scan(&prevSeq, &prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read stream tail: %w", err)
	}

	entry := &Entry{
		Seq:        prevSeq + 1,
		Timestamp:  time.Now().UTC(),
		PropertyID: propertyID,
		Action:     action,
		Actor:      actor,
		DataHash:   dataHash,
		PrevHash:   prevHash,
	}
	entry.Hash = hashEntry(entry)

	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_chain (property_id, seq, timestamp, action, actor, data_hash, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.PropertyID, entry.Seq, entry.Timestamp,
		entry.Action, entry.Actor, entry.DataHash,
		entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit audit tx: %w", err)
	}

	l.logger.Debug("audit entry appended",
		zap.String("property_id", entry.PropertyID),
		zap.Int("seq", entry.Seq),
		zap.String("action", entry.Action),
	)
	return entry, nil
}

// List implements Ledger.
func (l *PostgresLedger) List(ctx context.Context, propertyID string) ([]*Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT property_id, seq, timestamp, action, actor, data_hash, prev_hash, hash
		 FROM audit_chain WHERE property_id = $1 ORDER BY seq ASC`, propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit stream: %w", err)
	}
	defer rows.Close()

	var stream []*Entry
	for rows.Next() {
		curr := &Entry{}
		if err := rows.Scan(
			&curr.PropertyID, &curr.Seq, &curr.Timestamp,
			&curr.Action, &curr.Actor, &curr.DataHash,
			&curr.PrevHash, &curr.Hash,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		stream = append(stream, curr)
	}
	return stream, rows.Err()
}

// Tip implements Ledger.
func (l *PostgresLedger) Tip(ctx context.Context, propertyID string) (string, error) {
	var hash string
	err := l.pool.QueryRow(ctx,
		"SELECT hash FROM audit_chain WHERE property_id = $1 ORDER BY seq DESC LIMIT 1",
		propertyID,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return hashchain.GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("get stream tip: %w", err)
	}
	return hash, nil
}

// Verify implements Ledger. O(n) in stream length.
func (l *PostgresLedger) Verify(ctx context.Context, propertyID string) error {
	stream, err := l.List(ctx, propertyID)
	if err != nil {
		return err
	}
	return verifyStream(stream)
}
