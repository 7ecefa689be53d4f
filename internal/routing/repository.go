package routing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RouteRepository is the persistence contract for the static route catalog
type RouteRepository interface {
	// FindActiveRoutes returns enabled routes for a corridor in priority order
	FindActiveRoutes(ctx context.Context, source, dest string) ([]*Route, error)
	// ExistsRoute reports whether any enabled route serves the corridor
	ExistsRoute(ctx context.Context, source, dest string) (bool, error)
	// Countries returns every country appearing in the catalog
	Countries(ctx context.Context) ([]string, error)
	// List returns the whole catalog
	List(ctx context.Context) ([]*Route, error)
	// Upsert creates or replaces a route, for admin management
	Upsert(ctx context.Context, route *Route) error
}

// MemoryRouteRepository is an in-memory RouteRepository for tests and local runs
type MemoryRouteRepository struct {
	routes []*Route
	nextID int64
	mu     sync.RWMutex
}

// NewMemoryRouteRepository creates an empty in-memory catalog
func NewMemoryRouteRepository() *MemoryRouteRepository {
	return &MemoryRouteRepository{nextID: 1}
}

func (r *MemoryRouteRepository) FindActiveRoutes(ctx context.Context, source, dest string) ([]*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Route
	for _, route := range r.routes {
		if route.Enabled && route.SourceCountry == source && route.DestCountry == dest {
			copied := *route
			result = append(result, &copied)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result, nil
}

func (r *MemoryRouteRepository) ExistsRoute(ctx context.Context, source, dest string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if route.Enabled && route.SourceCountry == source && route.DestCountry == dest {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRouteRepository) Countries(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, route := range r.routes {
		seen[route.SourceCountry] = struct{}{}
		seen[route.DestCountry] = struct{}{}
	}
	countries := make([]string, 0, len(seen))
	for c := range seen {
		countries = append(countries, c)
	}
	sort.Strings(countries)
	return countries, nil
}

func (r *MemoryRouteRepository) List(ctx context.Context) ([]*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		copied := *route
		result = append(result, &copied)
	}
	return result, nil
}

func (r *MemoryRouteRepository) Upsert(ctx context.Context, route *Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if route.ID != 0 {
		for i, existing := range r.routes {
			if existing.ID == route.ID {
				copied := *route
				r.routes[i] = &copied
				return nil
			}
		}
	}

	copied := *route
	copied.ID = r.nextID
	r.nextID++
	r.routes = append(r.routes, &copied)
	route.ID = copied.ID
	return nil
}

// PostgresRouteRepository persists the route catalog in PostgreSQL
type PostgresRouteRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRouteRepository creates the repository and ensures the schema exists
func NewPostgresRouteRepository(ctx context.Context, pool *pgxpool.Pool) (*PostgresRouteRepository, error) {
	repo := &PostgresRouteRepository{pool: pool}
	if err := repo.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate routes table: %w", err)
	}
	return repo, nil
}

func (r *PostgresRouteRepository) migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS routes (
			id             BIGSERIAL PRIMARY KEY,
			source_country TEXT NOT NULL,
			dest_country   TEXT NOT NULL,
			gateway        TEXT NOT NULL,
			priority       INT NOT NULL DEFAULT 100,
			fee_percent    DOUBLE PRECISION NOT NULL DEFAULT 0,
			enabled        BOOLEAN NOT NULL DEFAULT true,
			UNIQUE (source_country, dest_country, gateway)
		)`); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_routes_corridor ON routes (source_country, dest_country) WHERE enabled`)
	return err
}

func (r *PostgresRouteRepository) FindActiveRoutes(ctx context.Context, source, dest string) ([]*Route, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_country, dest_country, gateway, priority, fee_percent, enabled
		FROM routes WHERE source_country = $1 AND dest_country = $2 AND enabled
		ORDER BY priority, id`, source, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()
	return scanRoutes(rows)
}

func (r *PostgresRouteRepository) ExistsRoute(ctx context.Context, source, dest string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM routes WHERE source_country = $1 AND dest_country = $2 AND enabled)`,
		source, dest,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check route existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresRouteRepository) Countries(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT source_country FROM routes UNION SELECT dest_country FROM routes ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

func (r *PostgresRouteRepository) List(ctx context.Context) ([]*Route, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_country, dest_country, gateway, priority, fee_percent, enabled
		FROM routes ORDER BY source_country, dest_country, priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()
	return scanRoutes(rows)
}

func (r *PostgresRouteRepository) Upsert(ctx context.Context, route *Route) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO routes (source_country, dest_country, gateway, priority, fee_percent, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_country, dest_country, gateway)
		DO UPDATE SET priority = EXCLUDED.priority, fee_percent = EXCLUDED.fee_percent, enabled = EXCLUDED.enabled
		RETURNING id`,
		route.SourceCountry, route.DestCountry, route.Gateway, route.Priority, route.FeePercent, route.Enabled,
	).Scan(&route.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert route: %w", err)
	}
	return nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRoutes(rows pgxRows) ([]*Route, error) {
	var result []*Route
	for rows.Next() {
		route := &Route{}
		if err := rows.Scan(&route.ID, &route.SourceCountry, &route.DestCountry,
			&route.Gateway, &route.Priority, &route.FeePercent, &route.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		result = append(result, route)
	}
	return result, rows.Err()
}
