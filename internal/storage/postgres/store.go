package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"launchpad-indexer/internal/storage"
)

// querier is the query surface shared by the pool and an open
// transaction, letting every store run unchanged inside WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store on PostgreSQL.
type Store struct {
	pool *Pool
	q    querier
	inTx bool
}

// NewStore creates the store over a connection pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool, q: pool.Pool}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

func (s *Store) Tokens() storage.TokenStore         { return &TokenStore{q: s.q} }
func (s *Store) Trades() storage.TradeStore         { return &TradeStore{q: s.q} }
func (s *Store) Holders() storage.HolderStore       { return &HolderStore{q: s.q} }
func (s *Store) PriceBars() storage.PriceBarStore   { return &PriceBarStore{q: s.q} }
func (s *Store) Watermarks() storage.WatermarkStore { return &WatermarkStore{q: s.q} }

// WithTx runs fn against a store view bound to one transaction. A
// nested call joins the enclosing transaction instead of opening a new
// one.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := &Store{pool: s.pool, q: tx, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
