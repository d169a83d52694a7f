package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// HolderStore implements storage.HolderStore using PostgreSQL. Rows
// exist only while the balance is positive.
type HolderStore struct {
	q querier
}

// Compile-time interface check.
var _ storage.HolderStore = (*HolderStore)(nil)

const holderColumns = `
	token_address, wallet,
	balance::text, total_bought::text, total_sold::text,
	first_bought_at, last_activity
`

// Get retrieves a holder row. Returns ErrNotFound if not exists.
func (s *HolderStore) Get(ctx context.Context, token, wallet string) (*domain.Holder, error) {
	query := `SELECT ` + holderColumns + ` FROM holders WHERE token_address = $1 AND wallet = $2`

	row := s.q.QueryRow(ctx, query, token, wallet)
	h, err := scanHolder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holder: %w", err)
	}
	return h, nil
}

// Upsert inserts or replaces the holder row for (token, wallet).
func (s *HolderStore) Upsert(ctx context.Context, h *domain.Holder) error {
	query := `
		INSERT INTO holders (
			token_address, wallet, balance, total_bought, total_sold,
			first_bought_at, last_activity
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_address, wallet) DO UPDATE SET
			balance = EXCLUDED.balance,
			total_bought = EXCLUDED.total_bought,
			total_sold = EXCLUDED.total_sold,
			last_activity = EXCLUDED.last_activity
	`

	_, err := s.q.Exec(ctx, query,
		h.TokenAddress,
		h.Wallet,
		bigArg(h.Balance),
		bigArg(h.TotalBought),
		bigArg(h.TotalSold),
		h.FirstBoughtAt,
		h.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("upsert holder: %w", err)
	}
	return nil
}

// Delete removes the holder row. Deleting a missing row is a no-op.
func (s *HolderStore) Delete(ctx context.Context, token, wallet string) error {
	_, err := s.q.Exec(ctx,
		`DELETE FROM holders WHERE token_address = $1 AND wallet = $2`,
		token, wallet,
	)
	if err != nil {
		return fmt.Errorf("delete holder: %w", err)
	}
	return nil
}

// CountByToken returns the number of holder rows for a token.
func (s *HolderStore) CountByToken(ctx context.Context, token string) (int64, error) {
	var count int64
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM holders WHERE token_address = $1`, token,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count holders: %w", err)
	}
	return count, nil
}

// ListByToken retrieves holders ordered by balance DESC.
func (s *HolderStore) ListByToken(ctx context.Context, token string, limit int) ([]*domain.Holder, error) {
	query := `
		SELECT ` + holderColumns + `
		FROM holders
		WHERE token_address = $1
		ORDER BY balance DESC, wallet ASC
		LIMIT $2
	`

	rows, err := s.q.Query(ctx, query, token, limit)
	if err != nil {
		return nil, fmt.Errorf("list holders by token: %w", err)
	}
	defer rows.Close()

	var holders []*domain.Holder
	for rows.Next() {
		h, err := scanHolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holder row: %w", err)
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder rows: %w", err)
	}
	return holders, nil
}

// SumBalances returns the sum of holder balances for a token.
func (s *HolderStore) SumBalances(ctx context.Context, token string) (*big.Int, error) {
	var sum string
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(balance), 0)::text FROM holders WHERE token_address = $1`,
		token,
	).Scan(&sum)
	if err != nil {
		return nil, fmt.Errorf("sum holder balances: %w", err)
	}
	return parseBig(sum)
}

// scanHolder scans a single row into a Holder.
func scanHolder(row pgx.Row) (*domain.Holder, error) {
	var (
		h                     domain.Holder
		balance, bought, sold string
	)

	err := row.Scan(
		&h.TokenAddress,
		&h.Wallet,
		&balance,
		&bought,
		&sold,
		&h.FirstBoughtAt,
		&h.LastActivity,
	)
	if err != nil {
		return nil, err
	}

	if h.Balance, err = parseBig(balance); err != nil {
		return nil, err
	}
	if h.TotalBought, err = parseBig(bought); err != nil {
		return nil, err
	}
	if h.TotalSold, err = parseBig(sold); err != nil {
		return nil, err
	}
	return &h, nil
}
