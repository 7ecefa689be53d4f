package stock

import (
	"context"
	"sync"
	"time"

	apperrors "transfer-router/internal/common/errors"
)

// MemoryRepository is an in-memory Repository for tests and local runs
type MemoryRepository struct {
	rows map[string]*Stock
	mu   sync.RWMutex
}

// NewMemoryRepository creates an empty in-memory stock repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*Stock)}
}

func key(gateway, country string) string {
	return gateway + ":" + country
}

func (r *MemoryRepository) Get(ctx context.Context, gateway, country string) (*Stock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.rows[key(gateway, country)]
	if !ok {
		return nil, apperrors.NotFoundError("stock row " + key(gateway, country))
	}
	copied := *s
	return &copied, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*Stock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Stock, 0, len(r.rows))
	for _, s := range r.rows {
		copied := *s
		result = append(result, &copied)
	}
	return result, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, stock *Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *stock
	copied.UpdatedAt = time.Now()
	r.rows[stock.Key()] = &copied
	return nil
}

// WithStockForUpdate mutates the row under the repository lock. Missing rows
// materialize with a zero balance so credits can bootstrap them.
func (r *MemoryRepository) WithStockForUpdate(ctx context.Context, gateway, country string, fn func(*Stock) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(gateway, country)
	s, ok := r.rows[k]
	if !ok {
		s = &Stock{Gateway: gateway, Country: country}
	}

	working := *s
	if err := fn(&working); err != nil {
		return err
	}

	working.UpdatedAt = time.Now()
	r.rows[k] = &working
	return nil
}
