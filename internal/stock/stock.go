// Package stock tracks the operating balance held with each gateway in each
// country. Balances gate admission (a route is only viable when stock covers
// the amount) and are debited on successful payouts through a locking
// read-for-update contract that keeps them from ever going negative.
package stock

import (
	"context"
	"time"
)

// Stock is the balance held with a gateway in a country, in minor units
type Stock struct {
	Gateway      string    `json:"gateway"`
	Country      string    `json:"country"`
	Balance      int64     `json:"balance"`
	MinThreshold int64     `json:"min_threshold"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Key returns the canonical lock key for this row
func (s *Stock) Key() string {
	return s.Gateway + ":" + s.Country
}

// Repository is the persistence contract for stock rows.
//
// WithStockForUpdate is the write path: implementations load the row under a
// write lock, run fn against it, and persist the mutation only when fn
// returns nil. An error from fn aborts without committing.
type Repository interface {
	// Get reads a row without locking, for admission checks and scoring
	Get(ctx context.Context, gateway, country string) (*Stock, error)
	// List returns every stock row
	List(ctx context.Context) ([]*Stock, error)
	// Upsert creates or replaces a row, for admin provisioning
	Upsert(ctx context.Context, stock *Stock) error
	// WithStockForUpdate runs fn against the locked row and saves the result
	WithStockForUpdate(ctx context.Context, gateway, country string, fn func(*Stock) error) error
}
