package stock

import (
	"context"

	apperrors "transfer-router/internal/common/errors"
	"transfer-router/internal/common/logging"
	"transfer-router/internal/locks"
)

// Ledger is the admission-control view over stock rows. Debits for the same
// (gateway, country) pair are serialized through the locker; different rows
// proceed in parallel.
type Ledger struct {
	repo   Repository
	locker locks.Locker
	logger logging.Logger
}

// NewLedger creates a ledger over the given repository and locker
func NewLedger(repo Repository, locker locks.Locker, logger logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Ledger{
		repo:   repo,
		locker: locker,
		logger: logger.WithFields(logging.String("component", "stock")),
	}
}

// Available returns the current balance for a (gateway, country) pair.
// Unknown rows read as zero so admission simply fails them.
func (l *Ledger) Available(ctx context.Context, gateway, country string) int64 {
	s, err := l.repo.Get(ctx, gateway, country)
	if err != nil {
		return 0
	}
	return s.Balance
}

// Covers reports whether the gateway's stock in the country covers amount
func (l *Ledger) Covers(ctx context.Context, gateway, country string, amount int64) bool {
	return l.Available(ctx, gateway, country) >= amount
}

// Debit subtracts amount from the row under the row lock. A debit that would
// drive the balance negative is a stock invariant violation: admission checks
// should have prevented it, so it aborts without committing and is logged
// loudly.
func (l *Ledger) Debit(ctx context.Context, gateway, country string, amount int64) error {
	if amount <= 0 {
		return apperrors.ValidationError("debit amount must be positive")
	}

	key := gateway + ":" + country
	return l.locker.WithLock(ctx, key, func() error {
		return l.repo.WithStockForUpdate(ctx, gateway, country, func(s *Stock) error {
			if s.Balance < amount {
				violation := apperrors.StockViolationError(gateway, country, s.Balance, amount)
				l.logger.Error("stock invariant violation, debit aborted", violation,
					logging.String("gateway", gateway),
					logging.String("country", country),
					logging.Int64("balance", s.Balance),
					logging.Int64("amount", amount),
				)
				return violation
			}
			s.Balance -= amount
			return nil
		})
	})
}

// Credit adds amount to the row under the row lock, creating it if absent
func (l *Ledger) Credit(ctx context.Context, gateway, country string, amount int64) error {
	if amount <= 0 {
		return apperrors.ValidationError("credit amount must be positive")
	}

	key := gateway + ":" + country
	return l.locker.WithLock(ctx, key, func() error {
		return l.repo.WithStockForUpdate(ctx, gateway, country, func(s *Stock) error {
			s.Balance += amount
			return nil
		})
	})
}

// List returns every stock row, for the admin surface
func (l *Ledger) List(ctx context.Context) ([]*Stock, error) {
	return l.repo.List(ctx)
}

// BelowThreshold returns rows whose balance has fallen under their configured
// minimum, for alerting and replenishment.
func (l *Ledger) BelowThreshold(ctx context.Context) ([]*Stock, error) {
	all, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]*Stock, 0)
	for _, s := range all {
		if s.Balance < s.MinThreshold {
			low = append(low, s)
		}
	}
	return low, nil
}
