// Package postgres implements mapping.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warecross/wms/internal/mapping"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store persists SKU mappings in the sku_mappings table.
//
// Writes to the same marketplace are serialized in-process so that
// insert-if-absent checks and the final write happen without interleaving.
// The UNIQUE(marketplace, raw_sku) constraint backs this up across processes.
type Store struct {
	db DBTX

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(db DBTX) *Store {
	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) marketplaceLock(marketplace string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[marketplace]
	if !ok {
		l = &sync.Mutex{}
		s.locks[marketplace] = l
	}
	return l
}

func (s *Store) Lookup(ctx context.Context, marketplace, rawSKU string) (string, bool, error) {
	const q = `SELECT msku FROM sku_mappings WHERE marketplace = $1 AND raw_sku = $2`

	var msku string
	err := s.db.QueryRow(ctx, q, marketplace, rawSKU).Scan(&msku)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup mapping: %w", err)
	}
	return msku, true, nil
}

func (s *Store) Insert(ctx context.Context, m mapping.Mapping, overwrite bool) error {
	lock := s.marketplaceLock(m.Marketplace)
	lock.Lock()
	defer lock.Unlock()

	if overwrite {
		const q = `
			INSERT INTO sku_mappings (marketplace, raw_sku, msku, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (marketplace, raw_sku)
			DO UPDATE SET msku = EXCLUDED.msku, created_at = EXCLUDED.created_at`
		if _, err := s.db.Exec(ctx, q, m.Marketplace, m.RawSKU, m.MSKU, m.CreatedAt); err != nil {
			return fmt.Errorf("upsert mapping: %w", err)
		}
		return nil
	}

	const q = `
		INSERT INTO sku_mappings (marketplace, raw_sku, msku, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Exec(ctx, q, m.Marketplace, m.RawSKU, m.MSKU, m.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return mapping.ErrDuplicateMapping
		}
		return fmt.Errorf("insert mapping: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, marketplace, rawSKU string) error {
	lock := s.marketplaceLock(marketplace)
	lock.Lock()
	defer lock.Unlock()

	const q = `DELETE FROM sku_mappings WHERE marketplace = $1 AND raw_sku = $2`
	tag, err := s.db.Exec(ctx, q, marketplace, rawSKU)
	if err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mapping.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, marketplace string) ([]mapping.Mapping, error) {
	const base = `SELECT marketplace, raw_sku, msku, created_at FROM sku_mappings`

	var (
		rows pgx.Rows
		err  error
	)
	if marketplace == "" {
		rows, err = s.db.Query(ctx, base+` ORDER BY marketplace, raw_sku`)
	} else {
		rows, err = s.db.Query(ctx, base+` WHERE marketplace = $1 ORDER BY raw_sku`, marketplace)
	}
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	out := make([]mapping.Mapping, 0)
	for rows.Next() {
		var m mapping.Mapping
		if err := rows.Scan(&m.Marketplace, &m.RawSKU, &m.MSKU, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM sku_mappings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count mappings: %w", err)
	}
	return n, nil
}
