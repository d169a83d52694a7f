package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	q querier
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	address, name, symbol, creator, bonding_curve,
	total_supply::text, curve_supply::text, sold_supply::text,
	migrated, migrated_at, dex_pair,
	market_cap::text, volume_24h::text, volume_7d::text, volume_total::text,
	holder_count, created_at, updated_at
`

// Insert adds a new token. Returns ErrDuplicateKey if the address exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (
			address, name, symbol, creator, bonding_curve,
			total_supply, curve_supply, sold_supply,
			migrated, migrated_at, dex_pair,
			market_cap, volume_24h, volume_7d, volume_total,
			holder_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := s.q.Exec(ctx, query,
		t.Address,
		t.Name,
		t.Symbol,
		t.Creator,
		t.BondingCurve,
		bigArg(t.TotalSupply),
		bigArg(t.CurveSupply),
		bigArg(t.SoldSupply),
		t.Migrated,
		t.MigratedAt,
		t.DexPair,
		bigArg(t.MarketCap),
		bigArg(t.Volume24h),
		bigArg(t.Volume7d),
		bigArg(t.VolumeTotal),
		t.HolderCount,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(ctx context.Context, address string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE address = $1`

	row := s.q.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// Update replaces the mutable fields of an existing token.
func (s *TokenStore) Update(ctx context.Context, t *domain.Token) error {
	query := `
		UPDATE tokens SET
			sold_supply = $2,
			migrated = $3,
			migrated_at = $4,
			dex_pair = $5,
			market_cap = $6,
			volume_24h = $7,
			volume_7d = $8,
			volume_total = $9,
			holder_count = $10,
			updated_at = $11
		WHERE address = $1
	`

	tag, err := s.q.Exec(ctx, query,
		t.Address,
		bigArg(t.SoldSupply),
		t.Migrated,
		t.MigratedAt,
		t.DexPair,
		bigArg(t.MarketCap),
		bigArg(t.Volume24h),
		bigArg(t.Volume7d),
		bigArg(t.VolumeTotal),
		t.HolderCount,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves tokens ordered by created_at DESC with pagination.
func (s *TokenStore) List(ctx context.Context, limit, offset int) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		ORDER BY created_at DESC, address ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListUnmigrated retrieves all tokens still trading on their curve.
func (s *TokenStore) ListUnmigrated(ctx context.Context) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE NOT migrated
		ORDER BY created_at ASC, address ASC
	`

	rows, err := s.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unmigrated tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// Count returns the total number of tokens.
func (s *TokenStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return count, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		t                                    domain.Token
		totalSupply, curveSupply, soldSupply string
		marketCap, vol24, vol7, volTotal     string
	)

	err := row.Scan(
		&t.Address,
		&t.Name,
		&t.Symbol,
		&t.Creator,
		&t.BondingCurve,
		&totalSupply,
		&curveSupply,
		&soldSupply,
		&t.Migrated,
		&t.MigratedAt,
		&t.DexPair,
		&marketCap,
		&vol24,
		&vol7,
		&volTotal,
		&t.HolderCount,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.TotalSupply, err = parseBig(totalSupply); err != nil {
		return nil, err
	}
	if t.CurveSupply, err = parseBig(curveSupply); err != nil {
		return nil, err
	}
	if t.SoldSupply, err = parseBig(soldSupply); err != nil {
		return nil, err
	}
	if t.MarketCap, err = parseBig(marketCap); err != nil {
		return nil, err
	}
	if t.Volume24h, err = parseBig(vol24); err != nil {
		return nil, err
	}
	if t.Volume7d, err = parseBig(vol7); err != nil {
		return nil, err
	}
	if t.VolumeTotal, err = parseBig(volTotal); err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTokens scans multiple rows into a slice of Token.
func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token

	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	return tokens, nil
}
