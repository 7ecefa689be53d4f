package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "transfer-router/internal/common/errors"
)

// PostgresRepository persists stock rows in PostgreSQL. Row serialization on
// the write path uses SELECT ... FOR UPDATE inside a transaction, so two
// concurrent debits of the same row queue on the database lock.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates the repository and ensures the schema exists
func NewPostgresRepository(ctx context.Context, pool *pgxpool.Pool) (*PostgresRepository, error) {
	repo := &PostgresRepository{pool: pool}
	if err := repo.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate stocks table: %w", err)
	}
	return repo, nil
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stocks (
			gateway       TEXT NOT NULL,
			country       TEXT NOT NULL,
			balance       BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			min_threshold BIGINT NOT NULL DEFAULT 0,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (gateway, country)
		)`)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, gateway, country string) (*Stock, error) {
	s := &Stock{Gateway: gateway, Country: country}
	err := r.pool.QueryRow(ctx,
		`SELECT balance, min_threshold, updated_at FROM stocks WHERE gateway = $1 AND country = $2`,
		gateway, country,
	).Scan(&s.Balance, &s.MinThreshold, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundError("stock row " + gateway + ":" + country)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stock row: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Stock, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT gateway, country, balance, min_threshold, updated_at FROM stocks ORDER BY gateway, country`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock rows: %w", err)
	}
	defer rows.Close()

	var result []*Stock
	for rows.Next() {
		s := &Stock{}
		if err := rows.Scan(&s.Gateway, &s.Country, &s.Balance, &s.MinThreshold, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock row: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) Upsert(ctx context.Context, stock *Stock) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stocks (gateway, country, balance, min_threshold, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (gateway, country)
		DO UPDATE SET balance = EXCLUDED.balance, min_threshold = EXCLUDED.min_threshold, updated_at = now()`,
		stock.Gateway, stock.Country, stock.Balance, stock.MinThreshold)
	if err != nil {
		return fmt.Errorf("failed to upsert stock row: %w", err)
	}
	return nil
}

// WithStockForUpdate loads the row FOR UPDATE, applies fn and writes the
// result back in the same transaction. An error from fn rolls back.
func (r *PostgresRepository) WithStockForUpdate(ctx context.Context, gateway, country string, fn func(*Stock) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin stock transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	s := &Stock{Gateway: gateway, Country: country}
	err = tx.QueryRow(ctx,
		`SELECT balance, min_threshold, updated_at FROM stocks WHERE gateway = $1 AND country = $2 FOR UPDATE`,
		gateway, country,
	).Scan(&s.Balance, &s.MinThreshold, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row does not exist yet; insert a zero row so credits can bootstrap.
		if _, err := tx.Exec(ctx,
			`INSERT INTO stocks (gateway, country) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			gateway, country); err != nil {
			return fmt.Errorf("failed to create stock row: %w", err)
		}
		err = tx.QueryRow(ctx,
			`SELECT balance, min_threshold, updated_at FROM stocks WHERE gateway = $1 AND country = $2 FOR UPDATE`,
			gateway, country,
		).Scan(&s.Balance, &s.MinThreshold, &s.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to lock stock row: %w", err)
	}

	if err := fn(s); err != nil {
		return err
	}

	s.UpdatedAt = time.Now()
	if _, err := tx.Exec(ctx,
		`UPDATE stocks SET balance = $1, min_threshold = $2, updated_at = $3 WHERE gateway = $4 AND country = $5`,
		s.Balance, s.MinThreshold, s.UpdatedAt, gateway, country); err != nil {
		return fmt.Errorf("failed to update stock row: %w", err)
	}

	return tx.Commit(ctx)
}
